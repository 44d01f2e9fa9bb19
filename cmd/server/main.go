package main

import "homebase/internal/app"

func main() {
	app.Run()
}
