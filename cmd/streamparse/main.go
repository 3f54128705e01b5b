package main

import (
	"github.com/alecthomas/kong"
)

var (
	version string = "dev"
	cli     streamCmd
)

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("streamparse"),
		kong.Description(`Stream a file through an incremental parser and print each unit as it completes.`),
		kong.Vars{"version": version},
		kong.Configuration(kong.JSON, "~/.streamparse.json", ".streamparse.json"),
		kong.UsageOnError(),
	)
	err := cli.Run()
	kctx.FatalIfErrorf(err)
}
