package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"foodcart/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded schema files in lexical order. Every file is
// idempotent, so re-running is safe.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) CreateRestaurant(ctx context.Context, r model.Restaurant) (model.Restaurant, error) {
	err := p.db.QueryRowContext(ctx, `INSERT INTO restaurants (name, address, contact_phone) VALUES ($1,$2,$3) RETURNING id`,
		r.Name, r.Address, r.ContactPhone).Scan(&r.ID)
	return r, err
}

func (p *Postgres) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, address, contact_phone FROM restaurants ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Restaurant{}
	for rows.Next() {
		var r model.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Address, &r.ContactPhone); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateProduct(ctx context.Context, pr model.Product) (model.Product, error) {
	err := p.db.QueryRowContext(ctx, `INSERT INTO products (name, category, price) VALUES ($1,$2,$3) RETURNING id`,
		pr.Name, pr.Category, pr.Price).Scan(&pr.ID)
	return pr, err
}

func (p *Postgres) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, category, price FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		var pr model.Product
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Category, &pr.Price); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) SetMenuItem(ctx context.Context, item model.MenuItem) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO menu_items (restaurant_id, product_id, available) VALUES ($1,$2,$3)
        ON CONFLICT (restaurant_id, product_id) DO UPDATE SET available = EXCLUDED.available`,
		item.RestaurantID, item.ProductID, item.Available)
	return foreignKeyNotFound(err)
}

func (p *Postgres) ListMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	return p.queryMenu(ctx, `SELECT restaurant_id, product_id, available FROM menu_items ORDER BY product_id, restaurant_id`)
}

func (p *Postgres) ListAvailableMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	return p.queryMenu(ctx, `SELECT restaurant_id, product_id, available FROM menu_items WHERE available ORDER BY product_id, restaurant_id`)
}

func (p *Postgres) queryMenu(ctx context.Context, q string) ([]model.MenuItem, error) {
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MenuItem{}
	for rows.Next() {
		var it model.MenuItem
		if err := rows.Scan(&it.RestaurantID, &it.ProductID, &it.Available); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CreateOrder inserts the order and its lines in one transaction. Line prices
// are copied from the current product price.
func (p *Postgres) CreateOrder(ctx context.Context, in model.OrderIn) (model.Order, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	o := model.Order{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Address:   in.Address,
		Status:    model.StatusCreated,
		Payment:   in.Payment,
		Comment:   in.Comment,
	}
	err = tx.QueryRowContext(ctx, `INSERT INTO orders (firstname, lastname, phonenumber, address, status, payment, comment)
        VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		o.FirstName, o.LastName, o.Phone, o.Address, string(o.Status), string(o.Payment), o.Comment).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return model.Order{}, err
	}
	for _, l := range in.Products {
		res, err := tx.ExecContext(ctx, `INSERT INTO order_lines (order_id, product_id, quantity, price)
            SELECT $1, id, $3, price FROM products WHERE id = $2`, o.ID, l.ProductID, l.Quantity)
		if err != nil {
			return model.Order{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.Order{}, fmt.Errorf("product %d: %w", l.ProductID, ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Order{}, err
	}
	return p.GetOrder(ctx, o.ID)
}

const orderColumns = `o.id, o.firstname, o.lastname, o.phonenumber, o.address, o.status, o.payment, o.comment, o.restaurant_id, o.created_at,
    o.called_at, o.delivered_at, COALESCE((SELECT SUM(l.price * l.quantity) FROM order_lines l WHERE l.order_id = o.id), 0)`

func scanOrder(row interface{ Scan(dest ...any) error }) (model.Order, error) {
	var o model.Order
	var status, payment string
	var rid sql.NullInt64
	var called, delivered sql.NullTime
	if err := row.Scan(&o.ID, &o.FirstName, &o.LastName, &o.Phone, &o.Address, &status, &payment, &o.Comment, &rid, &o.CreatedAt,
		&called, &delivered, &o.Total); err != nil {
		return o, err
	}
	o.CalledAt = timePtr(called)
	o.DeliveredAt = timePtr(delivered)
	o.Status = model.OrderStatus(status)
	o.Payment = model.PaymentMethod(payment)
	if rid.Valid {
		v := rid.Int64
		o.RestaurantID = &v
	}
	return o, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (p *Postgres) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

func (p *Postgres) ListActiveOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.status <> $1
        ORDER BY CASE o.status WHEN 'C' THEN 0 WHEN 'A' THEN 1 WHEN 'P' THEN 2 WHEN 'D' THEN 3 ELSE 4 END, o.id`,
		string(model.StatusDone))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) GetOrderLines(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	rows, err := p.db.QueryContext(ctx, `SELECT order_id, product_id, quantity, price FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OrderLine{}
	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE orders SET status = $1,
        called_at = CASE WHEN $1 = 'A' THEN COALESCE(called_at, now()) ELSE called_at END,
        delivered_at = CASE WHEN $1 = 'DN' THEN COALESCE(delivered_at, now()) ELSE delivered_at END
    WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (p *Postgres) AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error {
	res, err := p.db.ExecContext(ctx, `UPDATE orders SET restaurant_id = $1 WHERE id = $2`, restaurantID, orderID)
	if err != nil {
		return foreignKeyNotFound(err)
	}
	return affectedOrNotFound(res)
}

func (p *Postgres) GetLocation(ctx context.Context, address string) (model.Location, error) {
	l, err := scanLocation(p.db.QueryRowContext(ctx, `SELECT address, lat, lng, resolved_at FROM locations WHERE address = $1`, address))
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

// UpsertLocation is a single INSERT ... ON CONFLICT so concurrent resolvers of
// the same address never hit a duplicate-key error.
func (p *Postgres) UpsertLocation(ctx context.Context, loc model.Location) (model.Location, error) {
	if loc.ResolvedAt.IsZero() {
		loc.ResolvedAt = time.Now().UTC()
	}
	return scanLocation(p.db.QueryRowContext(ctx, `INSERT INTO locations (address, lat, lng, resolved_at) VALUES ($1,$2,$3,$4)
        ON CONFLICT (address) DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, resolved_at = EXCLUDED.resolved_at
        RETURNING address, lat, lng, resolved_at`,
		loc.Address, nullFloat(loc.Lat), nullFloat(loc.Lng), loc.ResolvedAt))
}

func (p *Postgres) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT address, lat, lng, resolved_at FROM locations ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLocation(row interface{ Scan(dest ...any) error }) (model.Location, error) {
	var l model.Location
	var lat, lng sql.NullFloat64
	if err := row.Scan(&l.Address, &lat, &lng, &l.ResolvedAt); err != nil {
		return l, err
	}
	l.Lat = floatPtr(lat)
	l.Lng = floatPtr(lng)
	return l, nil
}

// foreignKeyNotFound maps a foreign key violation (a reference to a missing
// restaurant or product) to ErrNotFound.
func foreignKeyNotFound(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrNotFound)
	}
	return err
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
