// Package server is the relay node: it stores and fans out envelopes by topic
// and serves the contact directory.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"topicmsg/internal/cryptographic/signature"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/keys"
	"topicmsg/internal/protocol/topic"
	"topicmsg/internal/protocol/wire"
	"topicmsg/internal/utils/log"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxBodySize = 4 << 20

type (
	EnvelopeStore interface {
		Publish(ctx context.Context, envs []model.Envelope) error
		List(ctx context.Context, topics []string, opts model.ListOptions) ([]model.Envelope, error)
		StreamLive(ctx context.Context, topics []string) iter.Seq2[model.Envelope, error]
	}

	ContactStore interface {
		GetContact(ctx context.Context, address string) (*model.PublicKeyBundle, error)
		PutContact(ctx context.Context, address string, bundle *model.PublicKeyBundle) error
	}

	HttpServer struct {
		envelopes EnvelopeStore
		contacts  ContactStore
		upgrader  websocket.Upgrader
	}
)

func NewHttpServer(envelopes EnvelopeStore, contacts ContactStore) *HttpServer {
	return &HttpServer{
		envelopes: envelopes,
		contacts:  contacts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
	}
}

func (s *HttpServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v1/publish", s.HandlePublish()).Methods(http.MethodPost)
	r.HandleFunc("/v1/query", s.HandleQuery()).Methods(http.MethodPost)
	r.HandleFunc("/v1/subscribe", s.HandleSubscribe()).Methods(http.MethodGet)
	r.HandleFunc("/v1/contacts/{address}", s.GetContact()).Methods(http.MethodGet)
	r.HandleFunc("/v1/contacts/{address}", s.PutContact()).Methods(http.MethodPut)
	return r
}

// Run serves until ctx is done.
func (s *HttpServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("node listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *HttpServer) HandlePublish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PublishRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid publish request")
			return
		}

		envs := make([]model.Envelope, 0, len(req.Envelopes))
		for _, b := range req.Envelopes {
			env, err := wire.UnmarshalEnvelope(b)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid envelope")
				return
			}
			if !topic.IsValid(env.ContentTopic) {
				writeError(w, http.StatusBadRequest, "invalid content topic")
				return
			}
			envs = append(envs, env)
		}

		if err := s.envelopes.Publish(r.Context(), envs); err != nil {
			log.Error("publish failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "publish failed")
			return
		}
		log.Debug("published", zap.Int("envelopes", len(envs)))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HttpServer) HandleQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid query request")
			return
		}
		if len(req.Topics) == 0 {
			writeError(w, http.StatusBadRequest, "topics cannot be empty")
			return
		}

		envs, err := s.envelopes.List(r.Context(), req.Topics, req.ListOptions())
		if err != nil {
			log.Error("query failed", zap.Strings("topics", req.Topics), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}

		resp := QueryResponse{Envelopes: make([][]byte, 0, len(envs))}
		for _, env := range envs {
			resp.Envelopes = append(resp.Envelopes, wire.MarshalEnvelope(env))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleSubscribe upgrades to a WebSocket and writes every live envelope on
// the requested topics as one binary frame.
func (s *HttpServer) HandleSubscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics := r.URL.Query()["topic"]
		if len(topics) == 0 {
			http.Error(w, "topic cannot be empty", http.StatusBadRequest)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go s.processWSMessage(conn, cancel)

		for env, err := range s.envelopes.StreamLive(ctx, topics) {
			if err != nil {
				log.Warn("stream error", zap.Strings("topics", topics), zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, wire.MarshalEnvelope(env)); err != nil {
				log.Debug("subscriber gone", zap.Error(err))
				return
			}
		}
	}
}

// processWSMessage drains the subscriber's side of the socket and cancels
// the stream once it closes.
func (s *HttpServer) processWSMessage(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug("subscriber web socket closed", zap.Error(err))
			return
		}
	}
}

func (s *HttpServer) GetContact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := signature.ChecksumAddress(mux.Vars(r)["address"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}

		bundle, err := s.contacts.GetContact(r.Context(), address)
		if err != nil {
			log.Error("get contact failed", zap.String("address", address), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get contact failed")
			return
		}
		if bundle == nil {
			writeError(w, http.StatusNotFound, "contact does not exist")
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(wire.MarshalPublicKeyBundle(bundle))
	}
}

// PutContact accepts a bundle only when its identity key is signed by the
// wallet at address and its prekey by that identity key.
func (s *HttpServer) PutContact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := signature.ChecksumAddress(mux.Vars(r)["address"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body failed")
			return
		}
		bundle, err := wire.UnmarshalPublicKeyBundle(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bundle")
			return
		}
		if err := checkBundle(address, bundle); err != nil {
			log.Warn("rejected contact", zap.String("address", address), zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := s.contacts.PutContact(r.Context(), address, bundle); err != nil {
			log.Error("put contact failed", zap.String("address", address), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "put contact failed")
			return
		}
		log.Info("contact updated", zap.String("address", address))
		w.WriteHeader(http.StatusNoContent)
	}
}

func checkBundle(address string, bundle *model.PublicKeyBundle) error {
	if bundle.IdentityKey == nil || bundle.PreKey == nil {
		return fmt.Errorf("incomplete bundle")
	}
	signer, err := keys.WalletSignatureAddress(bundle.IdentityKey)
	if err != nil {
		return err
	}
	if signer != address {
		return fmt.Errorf("identity key signed by %s", signer)
	}
	if !keys.VerifyPublicKey(bundle.IdentityKey, bundle.PreKey) {
		return fmt.Errorf("pre key not signed by identity key")
	}
	return nil
}
