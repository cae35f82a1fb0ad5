// Package main is the entry point for ritan.
package main

func main() {
	Execute()
}
