package web

import (
	"net/http"

	"github.com/erazemk/foodmap/internal/auth"
)

const receiptCookie = "receipt"

// NoStore keeps responses carrying form state or receipts out of caches.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// setReceiptCookie hands the submitter a receipt for the confirmation page.
func setReceiptCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     receiptCookie,
		Value:    token,
		Path:     "/submitted",
		MaxAge:   int(auth.ReceiptExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearReceiptCookie clears the receipt cookie with consistent attributes.
func clearReceiptCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     receiptCookie,
		Value:    "",
		Path:     "/submitted",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
