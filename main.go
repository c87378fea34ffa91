package main

import "github.com/photoatlas/backend/internal/app"

func main() {
	app.Execute()
}
