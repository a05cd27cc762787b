package main

import "mailfetch/internal/cli"

func main() {
	cli.Execute()
}
