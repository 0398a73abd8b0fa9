package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/portal"
	"github.com/trezcool/masomo-core/core/school"
	emailsvc "github.com/trezcool/masomo-core/services/email"
	"github.com/trezcool/masomo-core/storage"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	openStoreFunc    = storage.Open      // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	store  school.Store
	svc    *portal.Service
}

func newCommandLine(conf *core.Config, logger core.Logger) *commandLine {
	return &commandLine{conf: conf, logger: logger}
}

// open opens the configured store and the service on top of it, once.
func (cli *commandLine) open() error {
	if cli.svc != nil {
		return nil
	}
	if cli.store == nil {
		store, err := openStoreFunc(cli.conf, cli.logger)
		if err != nil {
			return err
		}
		cli.store = store
	}
	tmpls, err := core.ParseEmailTemplates(cli.conf)
	if err != nil {
		return err
	}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	mailer := emailsvc.NewConsoleService(cli.conf, tmpls, cli.logger)
	cli.svc = portal.NewService(cli.store, validate, translator, mailer, cli.conf, cli.logger)
	return nil
}

func (cli *commandLine) close() {
	if cli.store != nil {
		if err := cli.store.Close(); err != nil {
			cli.logger.Error("closing store", err)
		}
	}
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, version, redo, reset...)")
	fmt.Println("  adduser -name NAME -email EMAIL -role ROLE - create a user; the password will be prompted")
	fmt.Println("  resetpassword -email EMAIL - reset user's password; the password will be prompted")
	fmt.Println("  seed -file FILE - load a YAML fixtures file")
	fmt.Println("  dump -file FILE - write the whole store to a YAML fixtures file")
	fmt.Println("  copy -to BACKEND [-path PATH] - copy the whole store into another backend (file, sqlite, postgres)")
}

// promptPassword reads a password without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", string(school.RoleAdmin), "One of admin, teacher, student or parent.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedFile := seedCmd.String("file", "", "The YAML fixtures file to load.")

	dumpCmd := flag.NewFlagSet("dump", flag.ContinueOnError)
	dumpFile := dumpCmd.String("file", "", "The YAML file to write.")

	copyCmd := flag.NewFlagSet("copy", flag.ContinueOnError)
	copyTo := copyCmd.String("to", "", "The target backend: file, sqlite or postgres.")
	copyPath := copyCmd.String("path", "", "The target snapshot or SQLite file (file and sqlite backends).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *addUserName, *addUserEmail, school.Role(*addUserRole), pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(ctx, *seedFile)

	case "dump":
		if err := dumpCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *dumpFile == "" {
			dumpCmd.Usage()
			return errHelp
		}
		return cli.dump(ctx, *dumpFile)

	case "copy":
		if err := copyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *copyTo == "" {
			copyCmd.Usage()
			return errHelp
		}
		return cli.copy(ctx, *copyTo, *copyPath)

	default:
		cli.printUsage()
		return errHelp
	}
}
