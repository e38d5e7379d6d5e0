package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		Exit(1)
	}
}

const bashCompletion = `_pwvault() {
    local cur prev words cword
    _init_completion || return

    local commands="register login list get set rm passwd status compact keyring help completion"

    # Skip global flags before the command
    local i cmd=""
    for ((i = 1; i < cword; i++)); do
        case "${words[i]}" in
            -u|-config) ((i++)) ;;
            -*) ;;
            *) cmd="${words[i]}"; break ;;
        esac
    done

    if [[ -z "$cmd" ]]; then
        if [[ "$cur" == -* ]]; then
            COMPREPLY=($(compgen -W "-u -config -v" -- "$cur"))
        else
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        fi
        return
    fi

    case "$cmd" in
        list)
            COMPREPLY=($(compgen -W "--show" -- "$cur"))
            ;;
        get)
            COMPREPLY=($(compgen -W "--password" -- "$cur"))
            ;;
        set)
            COMPREPLY=($(compgen -W "--id --service --login --reveal" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _pwvault pwvault
`

const zshCompletion = `#compdef pwvault

_pwvault() {
    local -a commands
    commands=(
        'register:Create a user with an empty vault'
        'login:Check the master password'
        'list:List vault entries'
        'get:Show one entry'
        'set:Add or update an entry'
        'rm:Remove entries'
        'passwd:Change master password'
        'status:Show users and vault files'
        'compact:Compact the account index'
        'keyring:Manage password in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '-u[User name]:user:' \
        '-config[Config file]:file:_files' \
        '-v[Verbose logging]' \
        '1: :->command' \
        '*:: :->args'

    case "$state" in
        command)
            _describe -t commands 'pwvault commands' commands
            ;;
        args)
            case "${words[1]}" in
                list)
                    _arguments '--show[Show passwords]'
                    ;;
                get)
                    _arguments '--password[Print only the password]'
                    ;;
                set)
                    _arguments \
                        '--id[Entry to update]:id:' \
                        '--service[Service name]:service:' \
                        '--login[Username for the service]:login:' \
                        '--reveal[Show passwords in the change summary]'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'pwvault commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_pwvault "$@"
`

const fishCompletion = `# pwvault fish completions

set -l commands register login list get set rm passwd status compact keyring help completion

complete -c pwvault -f

# Global flags
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -o u -r -d 'User name'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -o config -r -F -d 'Config file'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -o v -d 'Verbose logging'

# Commands
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a register -d 'Create a user'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a login -d 'Check the master password'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a list -d 'List vault entries'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a get -d 'Show one entry'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a set -d 'Add or update an entry'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Remove entries'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change master password'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show users and vault files'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact the account index'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c pwvault -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# Command flags
complete -c pwvault -n "__fish_seen_subcommand_from list" -l show -d 'Show passwords'
complete -c pwvault -n "__fish_seen_subcommand_from get" -l password -d 'Print only the password'
complete -c pwvault -n "__fish_seen_subcommand_from set" -l id -r -d 'Entry to update'
complete -c pwvault -n "__fish_seen_subcommand_from set" -l service -r -d 'Service name'
complete -c pwvault -n "__fish_seen_subcommand_from set" -l login -r -d 'Username for the service'
complete -c pwvault -n "__fish_seen_subcommand_from set" -l reveal -d 'Show passwords in the change summary'

# keyring subcommands
complete -c pwvault -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c pwvault -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c pwvault -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
