package dispatcher

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

type Command string

const (
	StartCommand  Command = "start"
	SetKeyCommand Command = "setkey"
	MyKeyCommand  Command = "mykey"
	DelKeyCommand Command = "delkey"
	HelpCommand   Command = "help"
)

var commands = []Command{
	StartCommand, SetKeyCommand, MyKeyCommand, DelKeyCommand, HelpCommand,
}

var constantReplies = map[Command]string{
	HelpCommand: fmt.Sprintf("Available commands:\n%s", strings.Join(commandList(commands), "\n")),
}

func commandList(commands []Command) []string {
	return lo.Map(commands, func(c Command, _ int) string {
		return fmt.Sprintf("/%s", c)
	})
}
