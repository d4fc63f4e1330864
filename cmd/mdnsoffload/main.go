// mdnsoffload keeps a companion device answering mDNS queries on behalf
// of a sleeping host.
package main

import (
	"github.com/alecthomas/kong"

	"github.com/frobware/go-mdnsoffload/cmd/mdnsoffload/cli"
)

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c, cli.KongOptions()...)
	ctx.FatalIfErrorf(ctx.Run(&c))
}
