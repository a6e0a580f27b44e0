package entity

import (
	"fmt"
	"sort"
	"time"
)

func text(column, remote string) Field {
	return Field{Column: column, Remote: remote, Type: FieldString}
}

func textDefault(column, remote, def string) Field {
	return Field{Column: column, Remote: remote, Type: FieldString, Default: func(time.Time) any { return def }}
}

func integer(column, remote string) Field {
	return Field{Column: column, Remote: remote, Type: FieldInt}
}

func number(column, remote string) Field {
	return Field{Column: column, Remote: remote, Type: FieldFloat}
}

func money(column, remote string) Field {
	return Field{Column: column, Remote: remote, Type: FieldDecimal}
}

func flag(column, remote string, def bool) Field {
	return Field{Column: column, Remote: remote, Type: FieldBool, Default: func(time.Time) any { return def }}
}

// stamp is a business timestamp that defaults to the time of the restore.
func stamp(column, remote string) Field {
	return Field{Column: column, Remote: remote, Type: FieldTime, Default: func(now time.Time) any { return now }}
}

// clock is the updatedAt field. A document without one is treated as the
// epoch so it never beats a local record carrying a real timestamp.
func clock() Field {
	return Field{Column: "updated_at", Remote: "updatedAt", Type: FieldTime}
}

var kinds = []Kind{
	{
		Name: "customers", EntityType: "customer", DisplayName: "Customers",
		KeyType: KeyInt, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			text("first_name", "firstName"),
			text("last_name", "lastName"),
			text("phone", "phone"),
			text("email", "email"),
			text("national_id", "nationalId"),
			text("address", "address"),
			flag("is_company", "isCompany", false),
			text("notes", "notes"),
			stamp("created_at", "createdAt"),
			clock(),
		},
	},
	{
		Name: "suppliers", EntityType: "supplier", DisplayName: "Suppliers",
		KeyType: KeyInt, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			text("name", "name"),
			text("phone", "phone"),
			text("email", "email"),
			text("address", "address"),
			text("tax_id", "taxId"),
			text("notes", "notes"),
			flag("active", "active", true),
			clock(),
		},
	},
	{
		Name: "agents", EntityType: "agent", DisplayName: "Agents",
		KeyType: KeyInt, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			text("name", "name"),
			text("phone", "phone"),
			text("email", "email"),
			flag("active", "active", true),
			clock(),
		},
	},
	{
		Name: "car_types", EntityType: "car_type", DisplayName: "Car types",
		KeyType: KeyInt, KeyField: "id",
		Fields: []Field{
			integer("supplier_id", "supplierId"),
			text("name", "name"),
			text("car_group", "carGroup"),
			money("daily_price", "dailyPrice"),
			flag("active", "active", true),
		},
	},
	{
		Name: "branches", EntityType: "branch", DisplayName: "Branches",
		KeyType: KeyInt, KeyField: "id",
		Fields: []Field{
			integer("supplier_id", "supplierId"),
			text("name", "name"),
			text("city", "city"),
			text("street", "street"),
			text("phone", "phone"),
		},
	},
	{
		Name: "reservations", EntityType: "reservation", DisplayName: "Reservations",
		KeyType: KeyInt, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			integer("customer_id", "customerId"),
			integer("supplier_id", "supplierId"),
			integer("branch_id", "branchId"),
			integer("car_type_id", "carTypeId"),
			integer("agent_id", "agentId"),
			text("car_type_name", "carTypeName"),
			stamp("date_from", "dateFrom"),
			stamp("date_to", "dateTo"),
			flag("include_vat", "includeVat", true),
			number("vat_percent", "vatPercent"),
			money("base_price", "basePrice"),
			money("final_price", "finalPrice"),
			textDefault("status", "status", "PENDING"),
			flag("is_closed", "isClosed", false),
			text("external_number", "externalNumber"),
			text("notes", "notes"),
			stamp("created_at", "createdAt"),
			clock(),
		},
	},
	{
		Name: "payments", EntityType: "payment", DisplayName: "Payments",
		KeyType: KeyInt, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			integer("reservation_id", "reservationId"),
			money("amount", "amount"),
			textDefault("method", "method", "CASH"),
			text("note", "note"),
			stamp("paid_at", "paidAt"),
			clock(),
		},
	},
	{
		Name: "commission_rules", EntityType: "commission_rule", DisplayName: "Commission rules",
		KeyType: KeyInt, KeyField: "id",
		Fields: []Field{
			integer("min_days", "minDays"),
			integer("max_days", "maxDays"),
			number("percent", "percent"),
		},
	},
	{
		Name: "card_stubs", EntityType: "card_stub", DisplayName: "Card stubs",
		KeyType: KeyInt, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			integer("reservation_id", "reservationId"),
			text("brand", "brand"),
			text("last4", "last4"),
			text("holder_first_name", "holderFirstName"),
			text("holder_last_name", "holderLastName"),
			text("holder_national_id", "holderNationalId"),
			clock(),
		},
	},
	{
		Name: "requests", EntityType: "request", DisplayName: "Requests",
		KeyType: KeyInt, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			text("first_name", "firstName"),
			text("last_name", "lastName"),
			text("phone", "phone"),
			text("car_type_name", "carTypeName"),
			flag("is_purchase", "isPurchase", false),
			flag("is_quote", "isQuote", false),
			text("notes", "notes"),
			stamp("created_at", "createdAt"),
			clock(),
		},
	},
	{
		Name: "car_sales", EntityType: "car_sale", DisplayName: "Car sales",
		KeyType: KeyString, KeyField: "id", UpdatedAt: "updated_at",
		Fields: []Field{
			text("first_name", "firstName"),
			text("last_name", "lastName"),
			text("phone", "phone"),
			text("car_type_name", "carTypeName"),
			stamp("sale_date", "saleDate"),
			money("sale_price", "salePrice"),
			money("commission_price", "commissionPrice"),
			text("notes", "notes"),
			stamp("created_at", "createdAt"),
			clock(),
		},
	},
}

var (
	byName       = make(map[string]Kind, len(kinds))
	byEntityType = make(map[string]Kind, len(kinds))
)

func init() {
	for _, k := range kinds {
		if _, dup := byName[k.Name]; dup {
			panic(fmt.Sprintf("entity: duplicate kind %q", k.Name))
		}
		if _, dup := byEntityType[k.EntityType]; dup {
			panic(fmt.Sprintf("entity: duplicate entity type %q", k.EntityType))
		}
		byName[k.Name] = k
		byEntityType[k.EntityType] = k
	}
}

// All returns every registered kind in restore order.
func All() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Names returns the collection names of every kind, sorted.
func Names() []string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the kind stored in the named collection.
func Lookup(name string) (Kind, error) {
	k, ok := byName[name]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// ByEntityType returns the kind tagged with the given outbox entity type.
func ByEntityType(entityType string) (Kind, error) {
	k, ok := byEntityType[entityType]
	if !ok {
		return Kind{}, fmt.Errorf("%w: entity type %q", ErrUnknownKind, entityType)
	}
	return k, nil
}

// Resolve accepts either a collection name or an entity type.
func Resolve(nameOrType string) (Kind, error) {
	if k, ok := byName[nameOrType]; ok {
		return k, nil
	}
	if k, ok := byEntityType[nameOrType]; ok {
		return k, nil
	}
	return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, nameOrType)
}
