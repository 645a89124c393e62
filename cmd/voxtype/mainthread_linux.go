package main

func runOnMain(fn func()) {
	fn()
}
