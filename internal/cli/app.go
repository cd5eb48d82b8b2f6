// Package cli is the interactive front end: a small command loop over
// the vault manager and the reconciler.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0KvinayK0/android-pass/internal/config"
	"github.com/0KvinayK0/android-pass/internal/crypto"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/filex"
	"github.com/0KvinayK0/android-pass/internal/keystore"
	"github.com/0KvinayK0/android-pass/internal/local"
	"github.com/0KvinayK0/android-pass/internal/logging"
	"github.com/0KvinayK0/android-pass/internal/remote"
	"github.com/0KvinayK0/android-pass/internal/syncer"
	"github.com/0KvinayK0/android-pass/internal/vaults"
)

const userSignerInfo = "user-signature"

// App wires the composition root and holds the per-session state: the
// unlocked key services and the currently selected vault.
type App struct {
	cfg    *config.Config
	log    logging.Logger
	store  *local.SQLiteStore
	api    remote.DataSource
	reader *bufio.Reader
	out    io.Writer

	// set by Unlock
	keys   *keystore.Manager
	vaults *vaults.Manager
	rec    *syncer.Reconciler

	share domain.ShareID
}

// NewApp opens the local cache and the remote client. The key services
// are wired later by Unlock, when the master passphrase is available.
func NewApp(ctx context.Context, cfg *config.Config, token string, log logging.Logger) (*App, error) {
	if err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		return nil, err
	}
	store, err := local.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:    cfg,
		log:    log,
		store:  store,
		api:    remote.NewClient(cfg.ServerBaseURL, token, log),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Close releases the local cache.
func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) isUnlocked() bool {
	return a.rec != nil
}

// Unlock prompts for the account email and master passphrase, derives
// the user key and wires the key hierarchy, vault manager and
// reconciler.
func (a *App) Unlock(ctx context.Context) error {
	email, err := getText(a.reader, "Account email", a.out)
	if err != nil {
		return err
	}
	passphrase, err := getPassword(a.out)
	if err != nil {
		return err
	}

	userKey := crypto.DeriveUserKey(passphrase, []byte(email))
	for i := range passphrase {
		passphrase[i] = 0
	}

	userCtx, err := crypto.NewContext(userKey)
	if err != nil {
		return err
	}
	signer, err := crypto.NewSigner(userKey, userSignerInfo)
	if err != nil {
		return err
	}

	keys, err := keystore.NewManager(a.store, nil, a.cfg.RetainRotations, a.log)
	if err != nil {
		return err
	}
	vm := vaults.NewManager(a.store, a.api, keys, userCtx, signer, a.log)
	keys.SetRefresher(vm)

	a.keys = keys
	a.vaults = vm
	a.rec = syncer.New(a.store, a.api, keys, signer, a.cfg.PageSize, a.log)

	fmt.Fprintln(a.out, "Unlocked.")
	return nil
}

// StartSyncLoop polls the event feed for every vault at the configured
// interval until ctx is cancelled.
func (a *App) StartSyncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			syncCtx, cancel := context.WithTimeout(ctx, interval)
			if err := a.syncAll(syncCtx); err != nil {
				a.log.Warn(ctx, "background sync failed", "error", err)
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) syncAll(ctx context.Context) error {
	vs, err := a.vaults.ListVaults(ctx)
	if err != nil {
		return err
	}
	shareIDs := make([]domain.ShareID, 0, len(vs))
	for _, v := range vs {
		shareIDs = append(shareIDs, v.ShareID)
	}
	return a.rec.SyncAll(ctx, shareIDs)
}

// Run starts the command loop.
func (a *App) Run(ctx context.Context) {
	a.Root(ctx)
}
