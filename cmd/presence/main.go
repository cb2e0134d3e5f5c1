package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/MrSnakeDoc/presence/internal/app"
	"github.com/MrSnakeDoc/presence/internal/version"
)

func main() {
	var (
		configFile  string
		once        bool
		showVersion bool
	)

	flags := pflag.NewFlagSet("presence", pflag.ExitOnError)
	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file (default: $PRESENCE_CONFIG_FILE)")
	flags.BoolVar(&once, "once", false, "run a single cycle and exit")
	flags.BoolVarP(&showVersion, "version", "v", false, "print version information and exit")
	_ = flags.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version.String())
		return
	}

	if err := app.New(app.Options{ConfigFile: configFile, Once: once}).Run(); err != nil {
		log.Fatalf("❌ presence failed: %v", err)
	}
}
