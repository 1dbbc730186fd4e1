package main

import "github.com/yazinsai/cal-ai/cmd/calai"

func main() {
	calai.Execute()
}
