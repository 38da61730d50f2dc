package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/config"
	"github.com/stemsi/hris-authz/internal/database"
	"github.com/stemsi/hris-authz/internal/logger"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/repository"
	"github.com/stemsi/hris-authz/internal/service"
)

// inspector holds the read-only services every subcommand uses. Nothing here
// writes to the database or the cache.
type inspector struct {
	authz *service.AuthzService
	roles *service.RoleService
	out   *printer
}

func main() {
	noColor := flag.Bool("no-color", false, "Disable ANSI colors even on a terminal")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	// Keep stdout for the report; only warnings and errors reach stderr.
	log := logger.New(os.Stderr, "warn", cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	roleRepo := repository.NewRoleRepository(pool)
	in := &inspector{
		authz: service.NewAuthzService(
			repository.NewUserRepository(pool),
			roleRepo,
			repository.NewMenuRepository(pool),
			nil, nil, log,
		),
		roles: service.NewRoleService(roleRepo, repository.NewPermissionRepository(pool), nil, log),
		out:   newPrinter(os.Stdout, *noColor),
	}

	switch args[0] {
	case "check":
		if len(args) != 3 {
			fatalUsage("check <user_id> <permission>")
		}
		err = in.check(ctx, mustInt(args[1], "user_id"), args[2])
	case "roles":
		err = in.listRoles(ctx)
	case "menu":
		if len(args) != 2 {
			fatalUsage("menu <user_id>")
		}
		err = in.menu(ctx, mustInt(args[1], "user_id"))
	case "simulate":
		if len(args) < 2 || len(args) > 3 {
			fatalUsage("simulate <enum> [role_id]")
		}
		var roleID *int
		if len(args) == 3 {
			id := mustInt(args[2], "role_id")
			roleID = &id
		}
		err = in.simulate(ctx, args[1], roleID)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (in *inspector) check(ctx context.Context, userID int, permission string) error {
	p, res, err := in.authz.Explain(ctx, userID)
	if err != nil {
		return describe(err)
	}

	in.out.header(fmt.Sprintf("User %d", userID))
	in.printPrincipal(p)
	in.printResolution(res)

	d := authz.Authorize(res.Set, permission)
	fmt.Fprintln(in.out.w)
	switch {
	case !p.Active:
		in.out.bad(fmt.Sprintf("DENY %s (account inactive)", permission))
	case d.Allowed:
		in.out.good(fmt.Sprintf("ALLOW %s (%s)", permission, grantSource(res, permission)))
	default:
		in.out.bad(fmt.Sprintf("DENY %s (missing %s)", permission, d.Missing))
	}
	return nil
}

func (in *inspector) listRoles(ctx context.Context) error {
	roles, err := in.roles.ListRoles(ctx)
	if err != nil {
		return err
	}
	drift, err := in.roles.DriftReport(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int]authz.RoleDrift, len(drift))
	for _, d := range drift {
		byID[d.RoleID] = d
	}

	drifted := 0
	for _, r := range roles {
		kind := "custom"
		if r.IsSystem {
			kind = "system"
		}
		title := fmt.Sprintf("#%d %s [%s]", r.ID, r.Name, kind)
		if r.LegacyRole != nil {
			title += " enum=" + string(*r.LegacyRole)
		}
		in.out.header(title)
		in.out.field("bindings", joinOrDash(r.Permissions))
		switch {
		case r.LegacyMalformed:
			in.out.field("legacy JSON", in.out.paint(colorRed, "malformed, ignored"))
		case r.LegacyPermissions == nil:
			in.out.field("legacy JSON", "-")
		default:
			in.out.field("legacy JSON", joinOrDash(r.LegacyPermissions))
		}

		d := byID[r.ID]
		if !d.Drifted() {
			continue
		}
		drifted++
		if len(d.OnlyInLegacy) > 0 {
			in.out.field("only in JSON", in.out.paint(colorYellow, strings.Join(d.OnlyInLegacy, ", ")))
		}
		if len(d.OnlyInBindings) > 0 {
			in.out.field("only in bindings", in.out.paint(colorYellow, strings.Join(d.OnlyInBindings, ", ")))
		}
		if len(d.MissingFloor) > 0 {
			in.out.field("missing floor", in.out.paint(colorRed, strings.Join(d.MissingFloor, ", ")))
		}
		if d.StoredWildcard {
			in.out.field("stored wildcard", in.out.paint(colorRed, "ignored, grant super_admin instead"))
		}
	}

	fmt.Fprintln(in.out.w)
	fmt.Fprintf(in.out.w, "%d role(s), %d with drift. Run sync-system-roles to repair system role bindings.\n", len(roles), drifted)
	return nil
}

func (in *inspector) menu(ctx context.Context, userID int) error {
	p, res, err := in.authz.Explain(ctx, userID)
	if err != nil {
		return describe(err)
	}
	tree, err := in.authz.MenuTree(ctx)
	if err != nil {
		return err
	}

	in.out.header(fmt.Sprintf("Menu for user %d", userID))
	in.printPrincipal(p)

	for _, section := range authz.FilterForPrincipal(tree, res.Set) {
		fmt.Fprintln(in.out.w)
		fmt.Fprintln(in.out.w, in.out.paint(colorBold, section.Label))
		for _, n := range section.Items {
			fmt.Fprintf(in.out.w, "  %s %s\n", n.Name, in.out.paint(colorDim, n.Path))
			for _, c := range n.Children {
				fmt.Fprintf(in.out.w, "    %s %s\n", c.Name, in.out.paint(colorDim, c.Path))
			}
		}
	}

	pruned := authz.PrunedEntries(tree, res.Set)
	if len(pruned) == 0 {
		return nil
	}
	in.out.header("Pruned")
	for _, e := range pruned {
		reason := e.Reason
		if e.Reason == authz.PruneMissing {
			reason += " " + e.Permission
		}
		indent := "  "
		if e.ParentID != nil {
			indent = "    "
		}
		fmt.Fprintf(in.out.w, "%s%s %s\n", indent, e.Name, in.out.paint(colorYellow, "("+reason+")"))
	}
	return nil
}

func (in *inspector) simulate(ctx context.Context, legacy string, roleID *int) error {
	res, err := in.authz.Simulate(ctx, legacy, roleID)
	if err != nil {
		return describe(err)
	}
	title := "Simulated " + legacy
	if roleID != nil {
		title += fmt.Sprintf(" + role #%d", *roleID)
	}
	in.out.header(title)
	in.printResolution(res)
	return nil
}

func (in *inspector) printPrincipal(p model.Principal) {
	in.out.field("enum", p.LegacyRole)
	if p.CustomRoleID != nil {
		in.out.field("custom role", strconv.Itoa(*p.CustomRoleID))
	} else {
		in.out.field("custom role", "-")
	}
	if !p.Active {
		in.out.field("status", in.out.paint(colorRed, "inactive"))
	}
}

func (in *inspector) printResolution(res authz.Resolution) {
	in.out.field("enum floor", joinOrDash(res.Floor))
	if res.RoleID != 0 {
		in.out.field("relational", joinOrDash(res.Bindings))
		if res.LegacyErr != nil {
			in.out.field("legacy JSON", in.out.paint(colorRed, "malformed, ignored"))
		} else {
			in.out.field("legacy JSON", joinOrDash(res.LegacyJSON))
		}
	}
	if res.Wildcard {
		in.out.field("wildcard", in.out.paint(colorGreen, "yes"))
	}
	in.out.field("effective", joinOrDash(res.Set.Sorted()))
}

// grantSource names the first source that grants permission.
func grantSource(res authz.Resolution, permission string) string {
	for _, src := range []struct {
		name  string
		names []string
	}{
		{"enum floor", res.Floor},
		{"relational binding", res.Bindings},
		{"legacy JSON", res.LegacyJSON},
	} {
		if authz.NewPermissionSet(src.names...).Has(permission) {
			return "via " + src.name
		}
	}
	if res.Wildcard {
		return "via wildcard"
	}
	return "unguarded"
}

func describe(err error) error {
	var invalid *authz.InvalidPrincipalStateError
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return errors.New("user not found")
	case errors.As(err, &invalid):
		return fmt.Errorf("user %d has unrecognized enum value %q", invalid.UserID, invalid.Value)
	}
	return err
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func mustInt(raw, name string) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		fmt.Fprintf(os.Stderr, "invalid %s %q\n", name, raw)
		os.Exit(2)
	}
	return v
}

func fatalUsage(cmd string) {
	fmt.Fprintln(os.Stderr, "usage: authz-inspect", cmd)
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: authz-inspect [flags] <command>")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  check <user_id> <permission>   resolve and authorize one permission")
	fmt.Fprintln(os.Stderr, "  roles                          list roles and report binding drift")
	fmt.Fprintln(os.Stderr, "  menu <user_id>                 visible menu and pruned entries")
	fmt.Fprintln(os.Stderr, "  simulate <enum> [role_id]      resolve a hypothetical principal")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
