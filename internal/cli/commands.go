package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/syncer"
)

func (a *App) listVaults(ctx context.Context) {
	vs, err := a.vaults.ListVaults(ctx)
	if err != nil {
		a.fail(err)
		return
	}
	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SHARE\tNAME\tPRIMARY")
	for _, v := range vs {
		primary := ""
		if v.IsPrimary {
			primary = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.ShareID, v.Name, primary)
	}
	w.Flush()
}

func (a *App) useVault(args []string) {
	arg, ok := a.oneArg(args, "use <shareId>")
	if !ok {
		return
	}
	a.share = domain.ShareID(arg)
}

func (a *App) newVault(ctx context.Context, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(a.out, "usage: newvault <name> [color]")
		return
	}
	color := ""
	if len(args) == 2 {
		color = args[1]
	}
	v, err := a.vaults.CreateVault(ctx, args[0], color)
	if err != nil {
		a.fail(err)
		return
	}
	fmt.Fprintf(a.out, "Created vault %s (%s)\n", v.Name, v.ShareID)
}

func (a *App) removeVault(ctx context.Context, args []string) {
	arg, ok := a.oneArg(args, "rmvault <shareId>")
	if !ok {
		return
	}
	shareID := domain.ShareID(arg)
	if err := a.vaults.DeleteVault(ctx, shareID); err != nil {
		a.fail(err)
		return
	}
	if a.share == shareID {
		a.share = ""
	}
	fmt.Fprintf(a.out, "Deleted vault %s\n", shareID)
}

func (a *App) sync(ctx context.Context) {
	if err := a.syncAll(ctx); err != nil {
		a.fail(err)
		return
	}
	fmt.Fprintln(a.out, "Synced.")
}

func (a *App) list(ctx context.Context) {
	if !a.requireVault() {
		return
	}
	items, err := a.rec.ListItems(ctx, a.share)
	if err != nil {
		a.fail(err)
		return
	}
	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tREV\tSTATE")
	for _, it := range items {
		state := "active"
		if it.State == domain.ItemStateTrashed {
			state = "trashed"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", it.ID, it.Revision, state)
	}
	w.Flush()
}

func (a *App) show(ctx context.Context, args []string) {
	if !a.requireVault() {
		return
	}
	itemID, ok := a.itemArg(args, "show <itemId>")
	if !ok {
		return
	}
	c, err := a.rec.OpenItem(ctx, a.share, itemID)
	if err != nil {
		a.fail(err)
		return
	}

	fmt.Fprintf(a.out, "Title: %s\n", c.Title)
	switch v := c.Type.(type) {
	case domain.Login:
		fmt.Fprintf(a.out, "Username: %s\nPassword: %s\n", v.Username, v.Password)
		for _, site := range v.Websites {
			fmt.Fprintf(a.out, "URL: %s\n", site)
		}
	case domain.Note:
		fmt.Fprintf(a.out, "Note:\n%s\n", v.Text)
	case domain.Alias:
		fmt.Fprintf(a.out, "Alias: %s\n", v.AliasEmail)
	}
}

func (a *App) addLogin(ctx context.Context) {
	if !a.requireVault() {
		return
	}
	title, err := getText(a.reader, "Title", a.out)
	if err != nil {
		a.fail(err)
		return
	}
	username, err := getText(a.reader, "Username", a.out)
	if err != nil {
		a.fail(err)
		return
	}
	password, err := getText(a.reader, "Password", a.out)
	if err != nil {
		a.fail(err)
		return
	}
	website, err := getText(a.reader, "Website (optional)", a.out)
	if err != nil {
		a.fail(err)
		return
	}

	var websites []string
	if website != "" {
		websites = []string{website}
	}
	it, err := a.rec.CreateItem(ctx, a.share, domain.ItemContent{
		Title: title,
		Type:  domain.Login{Username: username, Password: password, Websites: websites},
	}, nil)
	if err != nil {
		a.fail(err)
		return
	}
	fmt.Fprintf(a.out, "Created %s (revision %d)\n", it.ID, it.Revision)
}

func (a *App) addNote(ctx context.Context) {
	if !a.requireVault() {
		return
	}
	title, err := getText(a.reader, "Title", a.out)
	if err != nil {
		a.fail(err)
		return
	}
	text, err := getText(a.reader, "Text", a.out)
	if err != nil {
		a.fail(err)
		return
	}

	it, err := a.rec.CreateItem(ctx, a.share, domain.ItemContent{
		Title: title,
		Type:  domain.Note{Text: text},
	}, nil)
	if err != nil {
		a.fail(err)
		return
	}
	fmt.Fprintf(a.out, "Created %s (revision %d)\n", it.ID, it.Revision)
}

func (a *App) trash(ctx context.Context, args []string) {
	a.batch(ctx, args, "trash <itemId>", a.rec.TrashItems)
}

func (a *App) restore(ctx context.Context, args []string) {
	a.batch(ctx, args, "restore <itemId>", a.rec.UntrashItems)
}

func (a *App) deleteItem(ctx context.Context, args []string) {
	a.batch(ctx, args, "delete <itemId>", a.rec.DeleteItems)
}

func (a *App) batch(ctx context.Context, args []string, usage string, op func(context.Context, domain.ShareID, []domain.ItemID) (syncer.BatchOutcome, error)) {
	if !a.requireVault() {
		return
	}
	itemID, ok := a.itemArg(args, usage)
	if !ok {
		return
	}
	out, err := op(ctx, a.share, []domain.ItemID{itemID})
	if err != nil {
		a.fail(err)
		return
	}
	if len(out.Failed) > 0 {
		fmt.Fprintf(a.out, "Rejected: %v (sync and retry)\n", out.Failed)
		return
	}
	fmt.Fprintln(a.out, "Done.")
}

func (a *App) move(ctx context.Context, args []string) {
	if !a.requireVault() {
		return
	}
	if len(args) != 2 {
		fmt.Fprintln(a.out, "usage: move <itemId> <destShareId>")
		return
	}
	it, err := a.rec.MoveItem(ctx, a.share, domain.ItemID(args[0]), domain.ShareID(args[1]))
	if err != nil {
		a.fail(err)
		return
	}
	fmt.Fprintf(a.out, "Moved to %s as %s\n", it.ShareID, it.ID)
}
