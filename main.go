package main

import (
	"github.com/kozaktomas/face-attendance/cmd"
)

func main() {
	cmd.Execute()
}
