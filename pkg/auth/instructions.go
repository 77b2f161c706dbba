package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExportGuide explains how to export a signed-in seller portal session
func ShowCookieExportGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "EXPORTING YOUR TCGPLAYER SELLER SESSION")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "tcgsync never signs in for you. It reuses the cookies of a browser")
	fmt.Fprintln(w, "session that is already signed in to the seller portal.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Sign in at https://store.tcgplayer.com/admin/Seller/Dashboard/")
	fmt.Fprintln(w, "2. Open https://sellerportal.tcgplayer.com/orders and make sure orders load")
	fmt.Fprintln(w, "3. Export cookies for tcgplayer.com with a cookie export extension,")
	fmt.Fprintln(w, "   either as JSON or as a Netscape cookies.txt file")
	fmt.Fprintln(w, "4. Run: tcgsync auth import --name <account> --file cookies.json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Alternatively copy the Cookie request header from the browser's")
	fmt.Fprintln(w, "developer tools (Network tab, any sellerportal request) and paste it")
	fmt.Fprintln(w, "when `tcgsync auth import --name <account>` prompts for it.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These cookies grant full access to your seller account. They are")
	fmt.Fprintln(w, "stored in the system keyring or an encrypted file, never in plain text.")
	fmt.Fprintln(w, line)
}
