// Command docflow is the terminal client for the document review workflow.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	root := newRootCmd(&app{})
	if err := root.Execute(); err != nil {
		if errors.Is(err, api.ErrAuthentication) || errors.Is(err, errLoginRequired) {
			fmt.Fprintln(os.Stderr, "not logged in: run `docflow login`")
		} else {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Exit(1)
	}
}
