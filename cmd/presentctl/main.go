// Package main provides the presentctl command line client for presentd.
package main

func main() {
	Execute()
}
