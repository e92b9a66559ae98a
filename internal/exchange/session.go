package exchange

// Session pairs a Reader with a Writer for the signing account, giving one
// value that can both read balances and send transactions.
type Session struct {
	*Reader
	*Writer
}
