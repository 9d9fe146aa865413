package cmd

import (
	"errors"
	"fmt"
)

var errNoURLs = errors.New("no URLs provided")

func errNoArgs(what string) error {
	return fmt.Errorf("no %s provided", what)
}
