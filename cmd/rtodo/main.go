// Command rtodo is a local todo list backed by SQLite.
package main

import "github.com/rtodo/rtodo/internal/cli"

func main() {
	cli.Execute()
}
