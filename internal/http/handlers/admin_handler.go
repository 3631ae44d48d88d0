package handlers

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"gadgetshop/internal/domain"
	applog "gadgetshop/internal/log"
	"gadgetshop/internal/media"
	"gadgetshop/internal/services"
	"gadgetshop/internal/validate"
)

type AdminHandler struct {
	Catalog *services.CatalogService
	Spec    *services.SpecService
	Order   *services.OrderService
	Auth    *services.AuthService
	Reports *services.ReportService
	Media   *media.Store
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	ords, err := h.Order.Latest(c.UserContext(), 10)
	if err != nil {
		applog.Error(c, "admin.dashboard.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load orders"})
	}
	return render(c, "admin_dashboard", fiber.Map{"Orders": ords})
}

// GET /admin/orders
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	ords, err := h.Order.Latest(c.UserContext(), 100)
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load orders"})
	}
	return render(c, "admin_orders", fiber.Map{"Orders": ords, "Statuses": domain.OrderStatuses})
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	to, ok := domain.ParseOrderStatus(c.FormValue("status"))
	if id == "" || !ok {
		return c.Status(400).SendString("missing id or status")
	}
	if err := h.Order.Transition(c.UserContext(), id, to); err != nil {
		applog.Security(c, "admin.orders.update.fail", map[string]any{"order_id": id, "status": to, "error": err.Error()})
		return c.Status(statusOf(err)).SendString("could not update status: " + publicMessage(err))
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": to})
	return c.Redirect("/admin/orders")
}

// GET /admin/orders/export.xlsx
func (h *AdminHandler) ExportOrders(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.Reports.OrdersXLSX(c.UserContext(), &buf, 1000); err != nil {
		applog.Error(c, "admin.orders.export.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not export orders"})
	}
	applog.Audit(c, "admin.orders.export", map[string]any{"bytes": buf.Len()})
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="orders.xlsx"`)
	return c.Send(buf.Bytes())
}

// UsersPage lists user accounts.
func (h *AdminHandler) UsersPage(c *fiber.Ctx) error {
	users, err := h.Auth.ListUsers(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.users.list.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load users"})
	}
	return render(c, "admin_users", fiber.Map{"Users": users})
}

// DeleteUser deletes an account; its customer record and orders stay.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(400).SendString("missing id")
	}
	if me := currentUser(c); me != nil && me.ID == id {
		return c.Status(400).SendString("cannot delete your own account")
	}
	if err := h.Auth.DeleteUser(c.UserContext(), id); err != nil {
		applog.Error(c, "admin.users.delete.fail", err, map[string]any{"user_id": id})
		return c.Status(statusOf(err)).SendString("could not delete user")
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"user_id": id})
	return c.Redirect("/admin/users")
}

// GET /admin/categories
func (h *AdminHandler) CategoriesPage(c *fiber.Ctx) error {
	cats, err := h.Catalog.Categories(c.UserContext())
	if err != nil {
		return fail(c, "admin.categories.list.fail", err, nil)
	}
	return render(c, "admin_categories", fiber.Map{"Categories": cats, "Err": c.Query("err")})
}

// POST /admin/categories
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	name, ok := validate.Name(c.FormValue("name"))
	slug, okSlug := validate.Slug(c.FormValue("slug"))
	if !ok || !okSlug {
		applog.Security(c, "validation.fail", map[string]any{"field": "category"})
		return c.Redirect("/admin/categories?err=invalid")
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), name, slug)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return c.Redirect("/admin/categories?err=conflict")
		}
		return fail(c, "admin.categories.create.fail", err, nil)
	}
	applog.Audit(c, "admin.categories.create", map[string]any{"category_id": cat.ID, "slug": cat.Slug})
	return c.Redirect("/admin/categories")
}

// GET /admin/categories/:id/features
func (h *AdminHandler) FeaturesPage(c *fiber.Ctx) error {
	cat, err := h.Catalog.CategoryByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, "admin.features.list.fail", err, nil)
	}
	feats, err := h.Spec.CategoryFeatures(c.UserContext(), cat.ID)
	if err != nil {
		return fail(c, "admin.features.list.fail", err, nil)
	}
	type featureRow struct {
		domain.CategoryFeature
		Values []string
	}
	rows := make([]featureRow, 0, len(feats))
	for _, f := range feats {
		vals, err := h.Spec.ValidValues(c.UserContext(), f.ID)
		if err != nil {
			return fail(c, "admin.features.list.fail", err, nil)
		}
		rows = append(rows, featureRow{CategoryFeature: f, Values: vals})
	}
	return render(c, "admin_features", fiber.Map{"Category": cat, "Features": rows, "Err": c.Query("err")})
}

// POST /admin/categories/:id/features
func (h *AdminHandler) CreateFeature(c *fiber.Ctx) error {
	catID, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Category not found"})
	}
	back := "/admin/categories/" + catID + "/features"
	f, err := h.Spec.CreateFeature(c.UserContext(), catID, c.FormValue("feature_name"), c.FormValue("filter_name"), c.FormValue("unit"))
	if err != nil {
		switch statusOf(err) {
		case fiber.StatusBadRequest:
			applog.Security(c, "admin.features.create.fail", map[string]any{"category_id": catID, "error": err.Error()})
			return c.Redirect(back + "?err=invalid")
		case fiber.StatusConflict:
			return c.Redirect(back + "?err=conflict")
		}
		return fail(c, "admin.features.create.fail", err, nil)
	}
	applog.Audit(c, "admin.features.create", map[string]any{"feature_id": f.ID, "category_id": catID})
	return c.Redirect(back)
}

// POST /admin/features/:id/values
func (h *AdminHandler) AddFeatureValue(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Spec.AddValidValue(c.UserContext(), id, c.FormValue("value")); err != nil {
		return fail(c, "admin.features.value.fail", err, map[string]any{"feature_id": id})
	}
	applog.Audit(c, "admin.features.value", map[string]any{"feature_id": id})
	if catID, ok := validate.ID(c.FormValue("category_id")); ok {
		return c.Redirect("/admin/categories/" + catID + "/features")
	}
	return c.Redirect("/admin/categories")
}

// GET /admin/products
func (h *AdminHandler) ProductsPage(c *fiber.Ctx) error {
	prods, err := h.Catalog.Products(c.UserContext(), c.QueryInt("page", 1), 50)
	if err != nil {
		return fail(c, "admin.products.list.fail", err, nil)
	}
	// category id -> features, for the per-product value forms
	feats := map[string][]domain.CategoryFeature{}
	for _, p := range prods {
		if _, seen := feats[p.CategoryID]; seen {
			continue
		}
		if feats[p.CategoryID], err = h.Spec.CategoryFeatures(c.UserContext(), p.CategoryID); err != nil {
			return fail(c, "admin.products.list.fail", err, nil)
		}
	}
	return render(c, "admin_products", fiber.Map{"Products": prods, "Features": feats})
}

// GET /admin/products/new
func (h *AdminHandler) NewProduct(c *fiber.Ctx) error {
	cats, err := h.Catalog.Categories(c.UserContext())
	if err != nil {
		return fail(c, "admin.products.form.fail", err, nil)
	}
	return render(c, "admin_product_form", fiber.Map{"Categories": cats, "Kinds": domain.Kinds})
}

// POST /admin/products
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	p, err := h.productFromForm(c)
	if err == nil {
		err = h.Catalog.CreateProduct(c.UserContext(), &p)
	}
	if err != nil {
		if statusOf(err) == fiber.StatusInternalServerError {
			return fail(c, "admin.products.create.fail", err, nil)
		}
		applog.Security(c, "admin.products.create.fail", map[string]any{"slug": p.Slug, "error": err.Error()})
		cats, _ := h.Catalog.Categories(c.UserContext())
		return renderStatus(c, statusOf(err), "admin_product_form", fiber.Map{
			"Categories": cats, "Kinds": domain.Kinds, "Err": publicMessage(err),
		})
	}
	applog.Audit(c, "admin.products.create", map[string]any{"product_id": p.ID, "kind": p.Kind, "slug": p.Slug})
	return c.Redirect("/admin/products")
}

func (h *AdminHandler) productFromForm(c *fiber.Ctx) (domain.Product, error) {
	var p domain.Product
	kind, ok := domain.ParseKind(c.FormValue("kind"))
	if !ok {
		return p, domain.Invalid("kind", "unknown product kind")
	}
	p.Kind = kind
	if p.Title, ok = validate.Name(c.FormValue("title")); !ok {
		return p, domain.Invalid("title", "is required")
	}
	if p.Slug, ok = validate.Slug(c.FormValue("slug")); !ok {
		return p, domain.Invalid("slug", "use lowercase letters, digits, - and _")
	}
	if p.CategoryID, ok = validate.ID(c.FormValue("category_id")); !ok {
		return p, domain.Invalid("category", "is required")
	}
	raw, ok := validate.Price(c.FormValue("price"))
	if !ok {
		return p, domain.Invalid("price", "must be a non-negative amount with at most two decimals")
	}
	p.Price = decimal.RequireFromString(raw)
	p.Description, _ = validate.Text(c.FormValue("description"), 4000)

	switch kind {
	case domain.KindNotebook:
		p.Notebook = &domain.NotebookSpec{
			Diagonal:          c.FormValue("diagonal"),
			DisplayType:       c.FormValue("display_type"),
			ProcessorFreq:     c.FormValue("processor_freq"),
			RAM:               c.FormValue("ram"),
			Video:             c.FormValue("video"),
			TimeWithoutCharge: c.FormValue("time_without_charge"),
		}
	case domain.KindSmartphone:
		p.Smartphone = &domain.SmartphoneSpec{
			Diagonal:    c.FormValue("diagonal"),
			DisplayType: c.FormValue("display_type"),
			Resolution:  c.FormValue("resolution"),
			AccumVolume: c.FormValue("accum_volume"),
			RAM:         c.FormValue("ram"),
			SD:          c.FormValue("sd") != "",
			SDVolumeMax: c.FormValue("sd_volume_max"),
			MainCamMP:   c.FormValue("main_cam_mp"),
			FrontCamMP:  c.FormValue("front_cam_mp"),
		}
	}

	// TODO: delete the stored image when CreateProduct rejects the product afterwards.
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return p, err
		}
		defer f.Close()
		if p.Image, err = h.Media.SaveProductImage(f); err != nil {
			return p, err
		}
	}
	return p, nil
}

// POST /admin/products/:id/features
func (h *AdminHandler) SetProductFeature(c *fiber.Ctx) error {
	id := c.Params("id")
	featureID := c.FormValue("feature_id")
	if err := h.Spec.SetProductFeature(c.UserContext(), id, featureID, c.FormValue("value")); err != nil {
		return fail(c, "admin.products.feature.fail", err, map[string]any{"product_id": id, "feature_id": featureID})
	}
	applog.Audit(c, "admin.products.feature", map[string]any{"product_id": id, "feature_id": featureID})
	return c.Redirect("/admin/products")
}
