package shop

type AnnotatedProduct struct {
	Product
	InCart       bool `json:"in_cart"`
	CartQuantity int  `json:"cart_quantity"`
	InWishlist   bool `json:"in_wishlist"`
}

// ViewerContext is a signed-in viewer's cart and wishlist membership,
// indexed by product ID.
type ViewerContext struct {
	UserID   string
	cart     map[string]int
	wishlist map[string]struct{}
}

func NewViewerContext(userID string, cart *Cart, wishlist []string) *ViewerContext {
	vc := &ViewerContext{
		UserID:   userID,
		cart:     make(map[string]int),
		wishlist: make(map[string]struct{}, len(wishlist)),
	}
	if cart != nil {
		for _, l := range cart.Lines {
			vc.cart[l.ProductID] += l.Quantity
		}
	}
	for _, id := range wishlist {
		vc.wishlist[id] = struct{}{}
	}
	return vc
}

// Annotate decorates products with the viewer's cart and wishlist state.
// A nil viewer is anonymous and gets zero values throughout.
func Annotate(products []Product, vc *ViewerContext) []AnnotatedProduct {
	out := make([]AnnotatedProduct, len(products))
	for i, p := range products {
		out[i] = AnnotatedProduct{Product: p}
		if vc == nil {
			continue
		}
		qty, inCart := vc.cart[p.ID]
		_, inWishlist := vc.wishlist[p.ID]
		out[i].InCart = inCart
		out[i].CartQuantity = qty
		out[i].InWishlist = inWishlist
	}
	return out
}
