// Command eventroom browses events, registers for them and chats in their
// rooms.
package main

import (
	"context"
	"os"

	"github.com/roach88/eventroom/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
