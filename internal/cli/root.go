package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/0KvinayK0/android-pass/internal/domain"
)

func (a *App) status() string {
	if !a.isUnlocked() {
		return "(locked)"
	}
	if a.share != "" {
		return fmt.Sprintf("(%s)", a.share)
	}
	return "(no vault)"
}

// Root runs the read-eval-print loop. Command handlers report their own
// errors; the loop itself only does I/O and dispatch.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "pass cli (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	if err := a.Unlock(ctx); err != nil {
		a.fail(err)
	}

	go a.StartSyncLoop(ctx, a.cfg.SyncInterval)

	for {
		fmt.Fprintf(a.out, "pass %s> ", a.status())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(a.out, "Bye!")
			return
		}
		a.dispatch(ctx, cmd, args)
	}
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) {
	if !a.isUnlocked() {
		switch cmd {
		case "help":
			fmt.Fprintln(a.out, "Available commands: unlock, exit")
		case "unlock":
			if err := a.Unlock(ctx); err != nil {
				a.fail(err)
			}
		default:
			fmt.Fprintln(a.out, "Locked. Type 'unlock' first.")
		}
		return
	}

	switch cmd {
	case "help":
		fmt.Fprintln(a.out, "Available commands: vaults, use, newvault, rmvault, sync, list, show, addlogin, addnote, trash, restore, delete, move, exit")
	case "vaults":
		a.listVaults(ctx)
	case "use":
		a.useVault(args)
	case "newvault":
		a.newVault(ctx, args)
	case "rmvault":
		a.removeVault(ctx, args)
	case "sync":
		a.sync(ctx)
	case "list":
		a.list(ctx)
	case "show":
		a.show(ctx, args)
	case "addlogin":
		a.addLogin(ctx)
	case "addnote":
		a.addNote(ctx)
	case "trash":
		a.trash(ctx, args)
	case "restore":
		a.restore(ctx, args)
	case "delete":
		a.deleteItem(ctx, args)
	case "move":
		a.move(ctx, args)
	default:
		fmt.Fprintf(a.out, "Unknown command %q. Type 'help'.\n", cmd)
	}
}

func (a *App) fail(err error) {
	fmt.Fprintf(a.out, "error: %v\n", err)
}

// requireVault reports whether a vault is selected, printing a hint
// otherwise.
func (a *App) requireVault() bool {
	if a.share == "" {
		fmt.Fprintln(a.out, "No vault selected. Run 'vaults' then 'use <shareId>'.")
		return false
	}
	return true
}

func (a *App) oneArg(args []string, usage string) (string, bool) {
	if len(args) != 1 {
		fmt.Fprintf(a.out, "usage: %s\n", usage)
		return "", false
	}
	return args[0], true
}

func (a *App) itemArg(args []string, usage string) (domain.ItemID, bool) {
	arg, ok := a.oneArg(args, usage)
	return domain.ItemID(arg), ok
}
