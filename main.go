package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/illarion/pwvault/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer memguard.Purge()

	global := flag.NewFlagSet("pwvault", flag.ExitOnError)
	global.Usage = printUsage
	user := global.String("u", "", "User name (default $PWVAULT_USER)")
	configPath := global.String("config", "", "Config file (default ~/.pwvault/config.json)")
	verbose := global.Bool("v", false, "Verbose logging")
	if err := global.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	args := global.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd.Configure(cmd.Globals{
		User:       *user,
		ConfigPath: *configPath,
		Verbose:    *verbose,
	})

	switch args[0] {
	case "register":
		runRegister(ctx, args[1:])
	case "login":
		runLogin(ctx, args[1:])
	case "list", "ls":
		runList(ctx, args[1:])
	case "get":
		runGet(ctx, args[1:])
	case "set":
		runSet(ctx, args[1:])
	case "rm":
		runRm(ctx, args[1:])
	case "passwd":
		runPasswd(ctx, args[1:])
	case "status":
		runStatus(ctx, args[1:])
	case "compact":
		runCompact(ctx, args[1:])
	case "keyring":
		runKeyring(ctx, args[1:])
	case "completion":
		runCompletion(ctx, args[1:])
	case "help", "-h", "--help":
		if len(args) <= 1 {
			printUsage()
			return
		}
		printCommandHelp(args[1])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func runRegister(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Register(ctx)
}

func runLogin(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.LoginCheck(ctx)
}

func runList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	show := fs.Bool("show", false, "Show passwords")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.List(ctx, *show)
}

func runGet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	passwordOnly := fs.Bool("password", false, "Print only the password")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pwvault get [--password] <id>")
		os.Exit(1)
	}
	cmd.Get(ctx, fs.Arg(0), *passwordOnly)
}

func runSet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	id := fs.String("id", "", "Entry to update (full id or unique prefix)")
	service := fs.String("service", "", "Service name")
	login := fs.String("login", "", "Username for the service")
	reveal := fs.Bool("reveal", false, "Show passwords in the change summary")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Set(ctx, cmd.SetOptions{
		ID:      *id,
		Service: *service,
		Login:   *login,
		Reveal:  *reveal,
	})
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Remove(ctx, fs.Args())
}

func runPasswd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Passwd(ctx)
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Status(ctx)
}

func runCompact(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Compact(ctx)
}

func runKeyring(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pwvault keyring <save|delete|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx)
	case "delete":
		cmd.KeyringDelete()
	case "status":
		cmd.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pwvault completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("pwvault - Local encrypted password vault")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pwvault [-u user] [-config file] [-v] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register    Create a user with an empty vault")
	fmt.Println("  login       Check the master password")
	fmt.Println("  list, ls    List vault entries")
	fmt.Println("  get         Show one entry")
	fmt.Println("  set         Add or update an entry")
	fmt.Println("  rm          Remove entries")
	fmt.Println("  passwd      Change master password")
	fmt.Println("  status      Show users and vault files")
	fmt.Println("  compact     Compact the account index")
	fmt.Println("  keyring     Manage password in OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pwvault -u alice register                       # Create user alice")
	fmt.Println("  pwvault -u alice set --service github.com       # Add an entry")
	fmt.Println("  pwvault -u alice list                           # List entries")
	fmt.Println("  pwvault -u alice get 1a2b3c4d                   # Show an entry")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  PWVAULT_USER      Default user")
	fmt.Println("  PWVAULT_PASSWORD  Master password (skips prompt and keyring)")
	fmt.Println("  PWVAULT_DIR       Users directory (default ./Users)")
	fmt.Println("  PWVAULT_CONFIG    Config file")
	fmt.Println()
	fmt.Println("Use 'pwvault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "register":
		fmt.Println("pwvault -u <user> register")
		fmt.Println()
		fmt.Println("Creates <user>_master.hash and an empty encrypted vault <user>.json")
		fmt.Println("in the users directory. Prompts for the master password twice.")
		fmt.Println("The password is not stored anywhere - you must remember it.")
	case "login":
		fmt.Println("pwvault -u <user> login")
		fmt.Println()
		fmt.Println("Checks the master password and opens the vault.")
		fmt.Println("Offers to save a prompted password to the OS keyring.")
	case "list", "ls":
		fmt.Println("pwvault -u <user> list [--show]")
		fmt.Println()
		fmt.Println("Lists vault entries with their short ids.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --show   Show passwords")
	case "get":
		fmt.Println("pwvault -u <user> get [--password] <id>")
		fmt.Println()
		fmt.Println("Shows one entry. <id> is a full id or a unique prefix of at least 4 characters.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --password   Print only the password")
	case "set":
		fmt.Println("pwvault -u <user> set [--id <id>] [--service <name>] [--login <username>] [--reveal]")
		fmt.Println()
		fmt.Println("Adds an entry, or updates the entry given by --id.")
		fmt.Println("The entry password is prompted for, or read from one line of stdin.")
		fmt.Println("When updating, empty fields keep their current values.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  pwvault -u alice set --service github.com --login alice")
		fmt.Println("  echo s3cret | pwvault -u alice set --service example.org")
		fmt.Println("  pwvault -u alice set --id 1a2b --login alice2")
	case "rm":
		fmt.Println("pwvault -u <user> rm <id> [id...]")
		fmt.Println()
		fmt.Println("Removes entries from the vault.")
	case "passwd":
		fmt.Println("pwvault -u <user> passwd")
		fmt.Println()
		fmt.Println("Changes the master password and re-encrypts the vault.")
		fmt.Println("A password saved in the keyring is updated.")
	case "status":
		fmt.Println("pwvault status")
		fmt.Println()
		fmt.Println("Shows the users directory, registered users, vault files,")
		fmt.Println("login activity and git exposure of vault files.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "compact":
		fmt.Println("pwvault compact")
		fmt.Println()
		fmt.Println("Compacts the account index to reclaim unused disk space.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "keyring":
		fmt.Println("pwvault -u <user> keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Manages the master password cached in the OS keyring.")
	case "completion":
		fmt.Println("pwvault completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(pwvault completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(pwvault completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  pwvault completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
