package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pvzzle/tracechain/internal/chain"
	"github.com/pvzzle/tracechain/internal/registry"
	"github.com/pvzzle/tracechain/internal/storage"
)

// userIDHeader carries the authenticated subject, injected by the API
// gateway in front of this service. Authentication itself happens
// there; this layer only consumes the claim.
const userIDHeader = "X-User-Id"

const userContextKey = "tracechain.user"

type Handler struct {
	svc     *registry.Service
	boot    *chain.Bootstrap
	version string
}

// New builds the echo server with all routes registered.
func New(svc *registry.Service, boot *chain.Bootstrap, version string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(99)
	registerMiddlewares(e)

	h := &Handler{svc: svc, boot: boot, version: version}

	e.GET("/health", h.health)
	e.GET("/public/verify", h.verify)
	e.GET("/public/trace", h.trace)

	auth := e.Group("", h.withUser)
	auth.GET("/users/me", h.me)
	auth.POST("/users/role", h.updateRole)

	auth.GET("/products", h.listProducts)
	auth.POST("/products", h.createProduct, requireRole(storage.RoleManufacturer))
	auth.GET("/products/:id", h.getProduct)
	auth.PUT("/products/:id", h.updateProduct, requireRole(storage.RoleManufacturer))
	auth.DELETE("/products/:id", h.deleteProduct, requireRole(storage.RoleManufacturer))
	auth.GET("/verify", h.verify)
	auth.GET("/trace", h.trace)

	auth.GET("/orders", h.listOrders)
	auth.POST("/orders", h.createOrder, requireRole(storage.RoleManufacturer, storage.RoleRetailer))
	auth.PUT("/orders/:id", h.updateOrder, requireRole(storage.RoleManufacturer, storage.RoleRetailer))

	auth.GET("/inventory", h.inventory)
	auth.GET("/manufacturers", h.manufacturers)
	auth.GET("/retailers", h.retailers)

	return e
}

// withUser resolves the gateway-injected subject into a stored profile,
// creating a default consumer profile on first contact.
func (h *Handler) withUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Request().Header.Get(userIDHeader)
		if userID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing user id")
		}

		user, err := h.svc.GetOrCreateUser(c.Request().Context(), userID)
		if err != nil {
			return err
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

func requireRole(roles ...storage.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := currentUser(c)
			for _, r := range roles {
				if user.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "role not allowed for this operation")
		}
	}
}

func currentUser(c echo.Context) storage.UserRecord {
	user, _ := c.Get(userContextKey).(storage.UserRecord)
	return user
}

func (h *Handler) health(c echo.Context) error {
	payload := echo.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"blockchain": echo.Map{
			"state":  h.boot.State().String(),
			"reason": h.boot.Reason(),
		},
	}
	if h.boot.Ready() {
		client := h.boot.Client()
		payload["blockchain"] = echo.Map{
			"state":    h.boot.State().String(),
			"account":  client.From().Hex(),
			"contract": client.Contract().Hex(),
		}
	}
	return c.JSON(http.StatusOK, payload)
}

func (h *Handler) verify(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product code is required")
	}
	result, err := h.svc.Verify(c.Request().Context(), code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) trace(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product code is required")
	}
	result, err := h.svc.Trace(c.Request().Context(), code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) me(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handler) updateRole(c echo.Context) error {
	var body struct {
		Role storage.Role `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	user := currentUser(c)
	if err := h.svc.UpdateUserRole(c.Request().Context(), user.UserID, body.Role); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "role updated", "role": body.Role})
}

func (h *Handler) listProducts(c echo.Context) error {
	products, err := h.svc.ListProducts(c.Request().Context(), currentUser(c), c.QueryParam("scope"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

func (h *Handler) createProduct(c echo.Context) error {
	var in registry.CreateProductInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	result, err := h.svc.CreateProduct(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) getProduct(c echo.Context) error {
	view, err := h.svc.GetProduct(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) updateProduct(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.Status == "" {
		return c.JSON(http.StatusOK, echo.Map{"message": "nothing to update"})
	}
	result, err := h.svc.UpdateProductStatus(c.Request().Context(), c.Param("id"), body.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) deleteProduct(c echo.Context) error {
	if err := h.svc.DeleteProduct(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}

func (h *Handler) listOrders(c echo.Context) error {
	orders, err := h.svc.ListOrders(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *Handler) createOrder(c echo.Context) error {
	var in registry.CreateOrderInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	result, err := h.svc.CreateOrder(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) updateOrder(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	result, err := h.svc.UpdateOrderStatus(c.Request().Context(), currentUser(c), c.Param("id"), body.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) inventory(c echo.Context) error {
	summary, err := h.svc.GetInventory(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) manufacturers(c echo.Context) error {
	list, err := h.svc.ListManufacturers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"manufacturers": list})
}

func (h *Handler) retailers(c echo.Context) error {
	list, err := h.svc.ListRetailers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"retailers": list})
}
