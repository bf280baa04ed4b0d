package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/academia/apps/container"
	"github.com/trezcool/academia/core"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	readLineFunc     = readLine          // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	conf  *core.Config
	app   *container.Container // nil when migrating
	sqlDB *sql.DB              // only set when migrating
	out   io.Writer
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS] - run a migration command on the postgres backend (up, down, status, ...)\n")
	cli.printf("  editor -text TEXT      - run one site editor command\n")
	cli.printf("  cleardata              - delete every record (asks for confirmation)\n")
	cli.printf("  hashpassword -role ROLE - hash a staff password for the configuration; the password is prompted next\n")
	cli.printf("  seed                   - create the default settings and a sample session\n")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	editorCmd := flag.NewFlagSet("editor", flag.ContinueOnError)
	editorText := editorCmd.String("text", "", "The command, eg. \"Change the site name to Bright Future\".")
	hashPasswordCmd := flag.NewFlagSet("hashpassword", flag.ContinueOnError)
	hashPasswordRole := hashPasswordCmd.String("role", "", "The staff role: admin, secretary or sco.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "editor":
		if err := editorCmd.Parse(args[2:]); err != nil {
			return err
		}
		if strings.TrimSpace(*editorText) == "" {
			editorCmd.Usage()
			return errHelp
		}
		return cli.edit(*editorText)
	case "cleardata":
		return cli.clearData()
	case "hashpassword":
		if err := hashPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *hashPasswordRole == "" {
			hashPasswordCmd.Usage()
			return errHelp
		}
		cli.printf("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		cli.printf("\n")
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			hashPasswordCmd.Usage()
			return errHelp
		}
		return cli.hashPassword(*hashPasswordRole, string(pwd))
	case "seed":
		return cli.seed()
	default:
		cli.printUsage()
		return errHelp
	}
}
