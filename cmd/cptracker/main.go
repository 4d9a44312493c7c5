package main

import (
	"cptracker-backend/cmd/cptracker/commands"
	"cptracker-backend/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
