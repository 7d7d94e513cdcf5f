package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix          = "user:%d"
	UsernameKeyPrefix      = "user:name:%s"
	ProductKeyPrefix       = "product:%d"
	productsListVersionKey = "products:list:version"
	productsListKeyPrefix  = "products:list:v%d:new"
)

const (
	UserTTL    = 5 * time.Minute
	ProductTTL = 2 * time.Minute
	ListTTL    = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func UsernameKey(username string) string {
	return fmt.Sprintf(UsernameKeyPrefix, username)
}

func ProductKey(productID uint) string {
	return fmt.Sprintf(ProductKeyPrefix, productID)
}

// ProductsListKey returns the key of the cached first page of newest products.
// The embedded version changes on every InvalidateProductsList.
func ProductsListKey(ctx context.Context) string {
	var version int64
	if client != nil {
		if v, err := client.Get(ctx, productsListVersionKey).Int64(); err == nil {
			version = v
		}
	}
	return fmt.Sprintf(productsListKeyPrefix, version)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint, username string) {
	keys := []string{UserKey(userID)}
	if username != "" {
		keys = append(keys, UsernameKey(username))
	}
	Invalidate(ctx, keys...)
}

func InvalidateProduct(ctx context.Context, productID uint) {
	Invalidate(ctx, ProductKey(productID))
	InvalidateProductsList(ctx)
}

// InvalidateProductsList bumps the list version so old pages expire on their own.
func InvalidateProductsList(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, productsListVersionKey)
	}
}
