package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/groundpeer/cmd/gpeer-controller/app"
)

func main() {
	app.NewApp().Run()
}
