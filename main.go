package main

import (
	"jencoder/app"
	"jencoder/pkg/observability"
)

func main() {
	observability.StartProfiling("jencoder")
	app.Run()
}
