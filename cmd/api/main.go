package main

import (
	"fmt"
	"os"

	"github.com/metinatakli/cinema-booking-engine/internal/app"
)

func main() {
	cfg := app.ParseFlags()

	err := app.Run(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
