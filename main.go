package main

import "github.com/motorlane/ms-go-entitlements/cmd"

func main() {
	cmd.Execute()
}
