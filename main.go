package main

import (
	"os"

	"textract/app"
)

func main() {
	os.Exit(app.Run())
}
