package snippet

import "github.com/atotto/clipboard"

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// Copy puts the unescaped snippet text on the system clipboard. It is
// best effort: headless hosts without a clipboard just report false.
func Copy(text string) bool {
	if clipboard.Unsupported {
		return false
	}
	return writeClipboard(text) == nil
}
