package main

import (
	"github.com/wellworld/core/internal/app"
	"github.com/wellworld/core/internal/config"
)

func main() {
	app.Go(config.Load())
}
