// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	apierrors "github.com/kraklabs/apindex/internal/errors"
)

const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for apindex
#   source <(apindex completion bash)

_apindex_completion() {
    local cur prev commands
    commands="process index clear-std status init completion"
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${cur} == -* && $COMP_CWORD -eq 1 ]] ; then
        COMPREPLY=( $(compgen -W "--json --quiet --no-color --verbose --debug --metrics-addr --version" -- ${cur}) )
        return 0
    fi

    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        process)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--limit --timeout --package" -- ${cur}) )
            else
                COMPREPLY=( $(compgen -f -- ${cur}) )
            fi
            ;;
        init)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force" -- ${cur}) )
            else
                COMPREPLY=( $(compgen -f -- ${cur}) )
            fi
            ;;
        index|clear-std|status)
            COMPREPLY=( $(compgen -f -- ${cur}) )
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _apindex_completion apindex
`

const zshCompletionTemplate = `#compdef apindex

_apindex() {
    local -a commands
    commands=(
        'process:Process the configured packages'
        'index:Rebuild the index documents'
        'clear-std:Forget standard library ledger entries'
        'status:Show ledger and manifest summaries'
        'init:Write a configuration template'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--json[Machine readable output]' \
        '(-q --quiet)'{-q,--quiet}'[Hide progress bars]' \
        '--no-color[Disable colored output]' \
        '*'{-v,--verbose}'[Increase log verbosity]' \
        '--debug[Enable debug logging]' \
        '--metrics-addr[Prometheus metrics address]:address:' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                process)
                    _arguments \
                        '--limit[Job quota for this run]:jobs:' \
                        '--timeout[Batch timeout]:duration:' \
                        '*--package[Process only this project]:project:' \
                        '1:config file:_files'
                    ;;
                init)
                    _arguments \
                        '--force[Overwrite an existing configuration]' \
                        '1:config file:_files'
                    ;;
                index|clear-std|status)
                    _arguments '1:config file:_files'
                    ;;
                completion)
                    _arguments '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_apindex
`

const fishCompletionTemplate = `# Fish completion script for apindex

complete -c apindex -f -n "__fish_use_subcommand" -a "process" -d "Process the configured packages"
complete -c apindex -f -n "__fish_use_subcommand" -a "index" -d "Rebuild the index documents"
complete -c apindex -f -n "__fish_use_subcommand" -a "clear-std" -d "Forget standard library ledger entries"
complete -c apindex -f -n "__fish_use_subcommand" -a "status" -d "Show ledger and manifest summaries"
complete -c apindex -f -n "__fish_use_subcommand" -a "init" -d "Write a configuration template"
complete -c apindex -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

complete -c apindex -l version -d "Show version and exit"
complete -c apindex -l json -d "Machine readable output"
complete -c apindex -s q -l quiet -d "Hide progress bars"
complete -c apindex -l no-color -d "Disable colored output"
complete -c apindex -s v -l verbose -d "Increase log verbosity"
complete -c apindex -l debug -d "Enable debug logging"
complete -c apindex -l metrics-addr -d "Prometheus metrics address" -r

complete -c apindex -n "__fish_seen_subcommand_from process" -l limit -d "Job quota for this run" -r
complete -c apindex -n "__fish_seen_subcommand_from process" -l timeout -d "Batch timeout" -r
complete -c apindex -n "__fish_seen_subcommand_from process" -l package -d "Process only this project" -r
complete -c apindex -n "__fish_seen_subcommand_from init" -l force -d "Overwrite an existing configuration"

complete -c apindex -n "__fish_seen_subcommand_from completion" -f -a "bash zsh fish"
`

// runCompletion prints the completion script for a shell.
func (c *cli) runCompletion(args []string) error {
	if len(args) != 1 {
		return apierrors.NewInputError("Missing shell name", "", "Usage: apindex completion bash|zsh|fish")
	}
	var script string
	switch args[0] {
	case "bash":
		script = bashCompletionTemplate
	case "zsh":
		script = zshCompletionTemplate
	case "fish":
		script = fishCompletionTemplate
	default:
		return apierrors.NewInputError("Unsupported shell: "+args[0], "", "Supported shells: bash, zsh, fish")
	}
	_, err := fmt.Fprint(c.stdout, script)
	return err
}
