package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/scalesync/internal/buildinfo"
	"github.com/dmitrijs2005/scalesync/internal/cli"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cmd := cli.NewRootCmd()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
