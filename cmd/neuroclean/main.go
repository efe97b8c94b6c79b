// Command neuroclean cleans EEG recordings: band-pass and notch filtering,
// bad-channel detection, and ICA-based artifact removal, with an HTML report
// of every decision made.
package main

func main() {
	Execute()
}
