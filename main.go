package main

import "account-health-alerts/internal/cli"

func main() {
	cli.Execute()
}
