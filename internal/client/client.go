package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/openmined/syftvault/internal/client/config"
	"github.com/openmined/syftvault/internal/client/files"
	"github.com/openmined/syftvault/internal/client/store"
	"github.com/openmined/syftvault/internal/client/sync"
	"github.com/openmined/syftvault/internal/crypto"
	"github.com/openmined/syftvault/internal/model"
	"github.com/openmined/syftvault/internal/syftsdk"
	"github.com/openmined/syftvault/internal/utils"
)

var (
	ErrDataDirLocked = errors.New("data dir is in use by another vault process")
	ErrAccountExists = errors.New("account already initialized")
)

var _ sync.Server = (*syftsdk.FilesAPI)(nil)

// Client is one replica: its store, the local file service, the server
// connection and the sync engine driving them.
type Client struct {
	config  *config.Config
	lock    *flock.Flock
	store   *store.Store
	account *model.Account
	files   *files.Service
	sdk     *syftsdk.SyftSDK
	engine  *sync.SyncEngine
}

// Open loads the replica in cfg.DataDir. The data dir stays locked until Close.
func Open(cfg *config.Config) (*Client, error) {
	c, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	account, err := c.store.GetAccount()
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := c.attach(account); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Init creates the account of a new replica. A nil key generates a new
// account and its root folder, otherwise the account is imported and its
// tree is pulled by the first sync.
func Init(cfg *config.Config, key []byte) (*Client, error) {
	c, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	if _, err := c.store.GetAccount(); err == nil {
		c.Close()
		return nil, ErrAccountExists
	} else if !errors.Is(err, store.ErrNoAccount) {
		c.Close()
		return nil, err
	}

	imported := key != nil
	if !imported {
		if key, err = crypto.GenerateAccountKey(); err != nil {
			c.Close()
			return nil, err
		}
	}

	account := &model.Account{Username: cfg.Username, APIURL: cfg.ServerURL, Key: key}
	if err := c.attach(account); err != nil {
		c.Close()
		return nil, err
	}

	err = c.store.Update(func(tx *store.Store) error {
		if err := tx.SetAccount(account); err != nil {
			return err
		}
		if imported {
			return nil
		}
		_, err := c.files.WithStore(tx).CreateRoot()
		return err
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := cfg.Save(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	slog.Info("account initialized", "username", account.Username, "server", account.APIURL, "imported", imported)
	return c, nil
}

func openStore(cfg *config.Config) (*Client, error) {
	if err := utils.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDataDirLocked, cfg.DataDir)
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return &Client{config: cfg, lock: lock, store: st}, nil
}

func (c *Client) attach(account *model.Account) error {
	accountCrypto, err := crypto.NewAccountCrypto(account.Key)
	if err != nil {
		return err
	}

	// the stored account wins over config so a replica keeps talking to its own server
	serverURL := account.APIURL
	if serverURL == "" {
		serverURL = c.config.ServerURL
	}
	sdk, err := syftsdk.New(&syftsdk.SyftSDKConfig{BaseURL: serverURL, User: account.Username})
	if err != nil {
		return err
	}

	c.account = account
	c.files = files.NewService(c.store, accountCrypto, account.Username)
	c.sdk = sdk
	c.engine = sync.NewSyncEngine(c.store, c.files, sdk.Files, sync.WithRetryLimit(c.config.Sync.RetryLimit))
	return nil
}

func (c *Client) Account() *model.Account {
	return c.account
}

func (c *Client) Files() *files.Service {
	return c.files
}

func (c *Client) Status() *sync.SyncStatus {
	return c.engine.Status()
}

// Sync runs one sync session
func (c *Client) Sync(ctx context.Context, onProgress sync.ProgressFunc) error {
	return c.engine.Sync(ctx, onProgress)
}

// PendingWork lists what the next sync would do without doing it
func (c *Client) PendingWork(ctx context.Context) ([]model.ClientWorkUnit, error) {
	work, err := c.engine.CalculateWork(ctx)
	if err != nil {
		return nil, err
	}
	units := make([]model.ClientWorkUnit, 0, len(work.WorkUnits))
	for _, unit := range work.WorkUnits {
		units = append(units, c.engine.DescribeUnit(unit))
	}
	return units, nil
}

// LastSynced is the server version the replica has fully reconciled
func (c *Client) LastSynced() (uint64, error) {
	return c.store.GetLastSynced()
}

func (c *Client) Close() error {
	if c.sdk != nil {
		c.sdk.Close()
	}
	var err error
	if c.store != nil {
		err = c.store.Close()
	}
	if c.lock != nil {
		err = errors.Join(err, c.lock.Unlock())
	}
	return err
}
