// Package main is the entry point for the ai-router service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/ai-router/cmd/ai-router/app"
)

func main() {
	app.NewApp().Run()
}
