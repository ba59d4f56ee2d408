package main

import (
	"go.uber.org/automaxprocs/maxprocs"

	"resizer/cmd"
)

func main() {
	// Size the default worker pool from the container's CPU quota.
	_, _ = maxprocs.Set()
	cmd.Execute()
}
