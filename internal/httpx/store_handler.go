package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/analytics"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type StoreHandler struct {
	Catalog   *catalog.Service
	Cart      *cart.Service
	Settings  *settings.Service
	Analytics *analytics.Service // optional
	Log       *zap.Logger
}

type addLineReq struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

type couponReq struct {
	Code string `json:"code"`
}

type rateReq struct {
	Rate    int    `json:"rate"`
	Comment string `json:"comment"`
}

type thresholdReq struct {
	Threshold decimal.Decimal `json:"threshold"`
}

type appbarReq struct {
	Text string `json:"text"`
}

func (h *StoreHandler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Viewer)

		r.Get("/categories", h.categories)
		r.Get("/products", h.browse)
		r.Get("/products/{id}", h.product)
		r.Get("/products/{id}/ratings", h.ratings)
		r.Post("/products/{id}/ratings", h.rate)

		r.Post("/wishlist/{productID}", h.addToWishlist)
		r.Delete("/wishlist/{productID}", h.removeFromWishlist)

		r.Get("/cart", h.getCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/lines", h.addLine)
		r.Put("/cart/lines/{productID}/increment", h.increment)
		r.Put("/cart/lines/{productID}/decrement", h.decrement)
		r.Delete("/cart/lines/{productID}", h.removeLine)
		r.Get("/cart/shipping-progress", h.shippingProgress)
		r.Post("/cart/coupon", h.applyCoupon)
		r.Get("/coupons/active", h.activeCoupon)

		r.Get("/settings/shipping", h.shippingThreshold)
		r.Get("/settings/appbar-text", h.appbarText)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireSupervisor)
			r.Put("/settings/shipping", h.setShippingThreshold)
			r.Put("/settings/appbar-text", h.setAppbarText)
			r.Get("/products", h.adminProducts)
			r.Get("/analytics/most-carted", h.mostCarted)
		})
	})
}

// fail logs server-side failures and writes the error response.
func (h *StoreHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shop.KindOf(err) == shop.KindStoreUnavailable {
		h.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, err)
}

// ---- catalog ----

func parseFilter(r *http.Request) (shop.FilterRequest, error) {
	q := r.URL.Query()
	var req shop.FilterRequest
	for _, c := range q["category"] {
		req.Categories = append(req.Categories, strings.Split(c, ",")...)
	}
	req.Sort = shop.SortKey(q.Get("sort"))

	var err error
	if req.Featured, err = optionalBool(q.Get("featured"), "featured"); err != nil {
		return req, err
	}
	if req.OnOffer, err = optionalBool(q.Get("onOffer"), "onOffer"); err != nil {
		return req, err
	}
	if req.MinPrice, err = optionalDecimal(q.Get("minPrice"), "minPrice"); err != nil {
		return req, err
	}
	if req.MaxPrice, err = optionalDecimal(q.Get("maxPrice"), "maxPrice"); err != nil {
		return req, err
	}
	if req.Page, err = optionalInt(q.Get("page"), "page"); err != nil {
		return req, err
	}
	if req.PageSize, err = optionalInt(q.Get("pageSize"), "pageSize"); err != nil {
		return req, err
	}
	return req, nil
}

func optionalDecimal(s, name string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, shop.InvalidInput("%s must be a number", name)
	}
	return &d, nil
}

func optionalInt(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, shop.InvalidInput("%s must be an integer", name)
	}
	return n, nil
}

func optionalBool(s, name string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, shop.InvalidInput("%s must be true or false", name)
	}
	return b, nil
}

func (h *StoreHandler) categories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

// browse never fails the request: a bad filter or an unavailable store
// yields an empty page with the error attached.
func (h *StoreHandler) browse(w http.ResponseWriter, r *http.Request) {
	req, err := parseFilter(r)
	if err != nil {
		writePartial(w, catalog.Page{Products: []shop.AnnotatedProduct{}, Pagination: shop.Paginate(0, req.Page, h.Catalog.PageSize)}, err)
		return
	}
	page, err := h.Catalog.Browse(r.Context(), viewerFrom(r.Context()), req)
	if err != nil {
		if shop.KindOf(err) == shop.KindStoreUnavailable {
			h.Log.Error("browse degraded", zap.Error(err))
		}
		writePartial(w, page, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

func (h *StoreHandler) product(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Product(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (h *StoreHandler) ratings(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.Ratings(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *StoreHandler) rate(w http.ResponseWriter, r *http.Request) {
	var req rateReq
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.Catalog.Rate(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "id"), req.Rate, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"average": sum.Average, "count": sum.Count})
}

func (h *StoreHandler) addToWishlist(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.AddToWishlist(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "productID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoreHandler) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.RemoveFromWishlist(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "productID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- cart ----

func (h *StoreHandler) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.Cart.Get(r.Context(), viewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *StoreHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.Clear(r.Context(), viewerFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoreHandler) addLine(w http.ResponseWriter, r *http.Request) {
	var req addLineReq
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ProductID == "" {
		h.fail(w, r, shop.InvalidInput("product_id is required"))
		return
	}
	delta := 1
	if req.Quantity != nil {
		delta = *req.Quantity
	}
	line, err := h.Cart.AddLine(r.Context(), viewerFrom(r.Context()), req.ProductID, delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, line)
}

func (h *StoreHandler) increment(w http.ResponseWriter, r *http.Request) {
	h.setQuantity(w, r, h.Cart.Increment)
}

func (h *StoreHandler) decrement(w http.ResponseWriter, r *http.Request) {
	h.setQuantity(w, r, h.Cart.Decrement)
}

type quantitySetter func(ctx context.Context, v shop.Viewer, productID string, target int) (shop.CartLine, error)

func (h *StoreHandler) setQuantity(w http.ResponseWriter, r *http.Request, set quantitySetter) {
	var req quantityReq
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	line, err := set(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, line)
}

func (h *StoreHandler) removeLine(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.RemoveLine(r.Context(), viewerFrom(r.Context()), chi.URLParam(r, "productID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoreHandler) shippingProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.Cart.ShippingProgress(r.Context(), viewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (h *StoreHandler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponReq
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.Cart.ApplyCoupon(r.Context(), viewerFrom(r.Context()), req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, q)
}

func (h *StoreHandler) activeCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.ActiveCoupon(r.Context(), viewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

// ---- settings ----

func (h *StoreHandler) shippingThreshold(w http.ResponseWriter, r *http.Request) {
	t, err := h.Settings.ShippingThreshold(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"threshold": t})
}

func (h *StoreHandler) appbarText(w http.ResponseWriter, r *http.Request) {
	text, err := h.Settings.AppbarText(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"text": text})
}

// ---- admin ----

func (h *StoreHandler) setShippingThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdReq
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.Settings.SetShippingThreshold(r.Context(), viewerFrom(r.Context()), req.Threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"threshold": t})
}

func (h *StoreHandler) setAppbarText(w http.ResponseWriter, r *http.Request) {
	var req appbarReq
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	text, err := h.Settings.SetAppbarText(r.Context(), viewerFrom(r.Context()), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"text": text})
}

func (h *StoreHandler) adminProducts(w http.ResponseWriter, r *http.Request) {
	page, err := optionalInt(r.URL.Query().Get("page"), "page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.Catalog.AdminProducts(r.Context(), viewerFrom(r.Context()), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (h *StoreHandler) mostCarted(w http.ResponseWriter, r *http.Request) {
	if h.Analytics == nil {
		h.fail(w, r, shop.NotFound("analytics"))
		return
	}
	limit, err := optionalInt(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.Analytics.MostCarted(r.Context(), viewerFrom(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}
