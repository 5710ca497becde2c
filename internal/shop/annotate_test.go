package shop

import "testing"

func TestAnnotateAnonymous(t *testing.T) {
	got := Annotate([]Product{{ID: "a"}, {ID: "b"}}, nil)
	for _, p := range got {
		if p.InCart || p.CartQuantity != 0 || p.InWishlist {
			t.Fatalf("anonymous viewer got flags on %s: %+v", p.ID, p)
		}
	}
}

func TestAnnotateViewer(t *testing.T) {
	cart := &Cart{ID: "c1", UserID: "u1", Lines: []CartLine{{ProductID: "a", Quantity: 3}}}
	vc := NewViewerContext("u1", cart, []string{"b"})
	got := Annotate([]Product{{ID: "a"}, {ID: "b"}, {ID: "c"}}, vc)

	if !got[0].InCart || got[0].CartQuantity != 3 || got[0].InWishlist {
		t.Fatalf("a: %+v", got[0])
	}
	if got[1].InCart || !got[1].InWishlist {
		t.Fatalf("b: %+v", got[1])
	}
	if got[2].InCart || got[2].InWishlist || got[2].CartQuantity != 0 {
		t.Fatalf("c: %+v", got[2])
	}
}

func TestAnnotateNoCart(t *testing.T) {
	vc := NewViewerContext("u1", nil, nil)
	got := Annotate([]Product{{ID: "a"}}, vc)
	if got[0].InCart || got[0].InWishlist {
		t.Fatalf("got %+v", got[0])
	}
}

func TestViewerRoles(t *testing.T) {
	if !(Viewer{}).Anonymous() || (Viewer{Role: RoleAdmin}).Supervisor() {
		t.Fatal("anonymous viewer is never a supervisor")
	}
	if (Viewer{UserID: "u1", Role: RoleCustomer}).RequireSupervisor() == nil {
		t.Fatal("customer passed supervisor check")
	}
	for _, r := range []Role{RoleManager, RoleAdmin} {
		if err := (Viewer{UserID: "u1", Role: r}).RequireSupervisor(); err != nil {
			t.Fatalf("%s: %v", r, err)
		}
	}
	if KindOf((Viewer{}).RequireUser()) != KindForbidden {
		t.Fatal("anonymous RequireUser should be Forbidden")
	}
}
