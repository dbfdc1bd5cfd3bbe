package app

import (
	"context"

	"topicmsg/internal/cryptographic/dh"
	"topicmsg/internal/protocol/keys"
	"topicmsg/internal/repository/account"
)

func (c *App) getAccountAndCreateIfNotExist(ctx context.Context, name string) (*account.Account, error) {
	acc, err := c.accountRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if acc != nil {
		return acc, nil
	}

	// the wallet only authorizes the identity key and is not kept
	wallet, _, err := dh.NewKeyPair()
	if err != nil {
		return nil, err
	}
	bundle, err := keys.NewPrivateKeyBundle(wallet)
	if err != nil {
		return nil, err
	}

	acc = account.FromBundle(name, bundle)
	_, err = c.accountRepo.Create(ctx, acc)
	if err != nil {
		return nil, err
	}

	return acc, nil
}
