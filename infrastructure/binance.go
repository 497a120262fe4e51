package infrastructure

import (
	"context"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/noda-sin/chasebot/models"
	"github.com/noda-sin/chasebot/usecase"
	"github.com/noda-sin/chasebot/util"
	cmap "github.com/orcaman/concurrent-map"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

const requestTimeout = 10 * time.Second

const (
	codeUnknownOrder  = -2011
	codeOrderNotExist = -2013
)

// Binance adapts the exchange's REST API to the engine's Exchange
// contract. Product ids use the BASE-QUOTE form; the adapter maps them to
// exchange symbols using the metadata loaded at construction. Order-path
// calls are single-shot: the engine's own polling cadence is the retry
// mechanism.
type Binance struct {
	api             *binance.Client
	products        []*models.ProductInfo
	symbolByProduct map[string]string
	productBySymbol map[string]string
	orderSymbols    cmap.ConcurrentMap // order id -> exchange symbol
}

func NewBinance(apikey string, secret string, productIDs []string) (*Binance, error) {
	bi := &Binance{
		api:             binance.NewClient(apikey, secret),
		symbolByProduct: map[string]string{},
		productBySymbol: map[string]string{},
		orderSymbols:    cmap.New(),
	}

	var info *binance.ExchangeInfo
	err := util.BackoffRetry(5, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		i, err := bi.api.NewExchangeInfoService().Do(ctx)
		info = i
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load exchange info")
	}

	wanted := util.NewSet()
	for _, id := range productIDs {
		wanted.Append(strings.ToUpper(strings.ReplaceAll(id, "-", "")))
	}
	for _, s := range info.Symbols {
		if !wanted.Include(s.Symbol) {
			continue
		}
		priceFilter := s.PriceFilter()
		lotFilter := s.LotSizeFilter()
		if priceFilter == nil || lotFilter == nil {
			continue
		}
		tick, err := decimal.NewFromString(priceFilter.TickSize)
		if err != nil {
			return nil, errors.Wrapf(err, "bad tick size for %s", s.Symbol)
		}
		minQty, err := decimal.NewFromString(lotFilter.MinQuantity)
		if err != nil {
			return nil, errors.Wrapf(err, "bad min quantity for %s", s.Symbol)
		}
		id := s.BaseAsset + "-" + s.QuoteAsset
		bi.products = append(bi.products, &models.ProductInfo{
			ID:             id,
			BaseAsset:      models.Asset(s.BaseAsset),
			QuoteAsset:     models.Asset(s.QuoteAsset),
			MinSize:        minQty,
			QuoteIncrement: tick,
		})
		bi.symbolByProduct[id] = s.Symbol
		bi.productBySymbol[s.Symbol] = id
	}
	return bi, nil
}

func (bi *Binance) GetProducts() ([]*models.ProductInfo, error) {
	return bi.products, nil
}

func (bi *Binance) PlaceLimitOrder(productID string, side models.OrderSide, size decimal.Decimal, price decimal.Decimal, postOnly bool) (*models.Order, error) {
	symbol, ok := bi.symbolByProduct[productID]
	if !ok {
		return nil, usecase.NewExchangeError(usecase.ErrTransient, "place limit order",
			errors.Errorf("unknown product: %s", productID))
	}
	svc := bi.api.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Quantity(size.String()).
		Price(price.String()).
		NewClientOrderID(xid.New().String())
	if postOnly {
		svc = svc.Type(binance.OrderTypeLimitMaker)
	} else {
		svc = svc.Type(binance.OrderTypeLimit).TimeInForce(binance.TimeInForceTypeGTC)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, bi.wrapErr("place limit order", err)
	}
	order, err := bi.orderFromResponse(res, productID)
	if err != nil {
		return nil, err
	}
	bi.orderSymbols.Set(order.ID, symbol)
	return order, nil
}

func (bi *Binance) PlaceMarketOrder(productID string, side models.OrderSide, size decimal.Decimal, funds decimal.Decimal) (*models.Order, error) {
	symbol, ok := bi.symbolByProduct[productID]
	if !ok {
		return nil, usecase.NewExchangeError(usecase.ErrTransient, "place market order",
			errors.Errorf("unknown product: %s", productID))
	}
	svc := bi.api.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(binance.OrderTypeMarket).
		NewClientOrderID(xid.New().String())
	if !size.IsZero() {
		svc = svc.Quantity(size.String())
	} else {
		svc = svc.QuoteOrderQty(funds.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, bi.wrapErr("place market order", err)
	}
	order, err := bi.orderFromResponse(res, productID)
	if err != nil {
		return nil, err
	}
	bi.orderSymbols.Set(order.ID, symbol)
	return order, nil
}

func (bi *Binance) CancelOrder(id string) error {
	symbol, orderID, err := bi.lookupOrder(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_, err = bi.api.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return bi.wrapErr("cancel order", err)
	}
	return nil
}

func (bi *Binance) CancelAll(productID string) error {
	symbols := []string{}
	if productID != "" {
		symbol, ok := bi.symbolByProduct[productID]
		if !ok {
			return usecase.NewExchangeError(usecase.ErrTransient, "cancel all",
				errors.Errorf("unknown product: %s", productID))
		}
		symbols = append(symbols, symbol)
	} else {
		for _, symbol := range bi.symbolByProduct {
			symbols = append(symbols, symbol)
		}
	}
	for _, symbol := range symbols {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		_, err := bi.api.NewCancelOpenOrdersService().Symbol(symbol).Do(ctx)
		cancel()
		if err != nil {
			// nothing resting for this symbol
			if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == codeUnknownOrder {
				continue
			}
			return bi.wrapErr("cancel all", err)
		}
	}
	return nil
}

func (bi *Binance) GetOrder(id string) (*models.Order, error) {
	symbol, orderID, err := bi.lookupOrder(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := bi.api.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, bi.wrapErr("get order", err)
	}
	return bi.orderFromListed(res)
}

func (bi *Binance) GetOrders() ([]*models.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	listed, err := bi.api.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, bi.wrapErr("get orders", err)
	}
	orders := []*models.Order{}
	for _, l := range listed {
		if _, tracked := bi.productBySymbol[l.Symbol]; !tracked {
			continue
		}
		order, err := bi.orderFromListed(l)
		if err != nil {
			return nil, err
		}
		bi.orderSymbols.Set(order.ID, l.Symbol)
		orders = append(orders, order)
	}
	return orders, nil
}

func (bi *Binance) GetAccounts() ([]*models.Balance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	account, err := bi.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, bi.wrapErr("get accounts", err)
	}
	balances := []*models.Balance{}
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, usecase.NewExchangeError(usecase.ErrParse, "get accounts",
				errors.Wrapf(err, "bad balance for %s", b.Asset))
		}
		balances = append(balances, &models.Balance{
			Asset:     models.Asset(b.Asset),
			Available: free,
		})
	}
	return balances, nil
}

func (bi *Binance) lookupOrder(id string) (string, int64, error) {
	v, ok := bi.orderSymbols.Get(id)
	if !ok {
		return "", 0, usecase.NewExchangeError(usecase.ErrNotFound, "lookup order",
			errors.Errorf("order not found: %s", id))
	}
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", 0, usecase.NewExchangeError(usecase.ErrParse, "lookup order", err)
	}
	return v.(string), orderID, nil
}

func (bi *Binance) orderFromResponse(res *binance.CreateOrderResponse, productID string) (*models.Order, error) {
	price, err := decimal.NewFromString(res.Price)
	if err != nil {
		return nil, usecase.NewExchangeError(usecase.ErrParse, "parse order", err)
	}
	size, err := decimal.NewFromString(res.OrigQuantity)
	if err != nil {
		return nil, usecase.NewExchangeError(usecase.ErrParse, "parse order", err)
	}
	filled, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return nil, usecase.NewExchangeError(usecase.ErrParse, "parse order", err)
	}
	return &models.Order{
		ID:            strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		ProductID:     productID,
		Side:          orderSide(res.Side),
		OrderType:     orderType(res.Type),
		Status:        orderStatus(res.Status),
		Price:         price,
		Size:          size,
		FilledSize:    filled,
		PostOnly:      res.Type == binance.OrderTypeLimitMaker,
		Time:          time.Unix(0, res.TransactTime*int64(time.Millisecond)),
	}, nil
}

func (bi *Binance) orderFromListed(l *binance.Order) (*models.Order, error) {
	price, err := decimal.NewFromString(l.Price)
	if err != nil {
		return nil, usecase.NewExchangeError(usecase.ErrParse, "parse order", err)
	}
	size, err := decimal.NewFromString(l.OrigQuantity)
	if err != nil {
		return nil, usecase.NewExchangeError(usecase.ErrParse, "parse order", err)
	}
	filled, err := decimal.NewFromString(l.ExecutedQuantity)
	if err != nil {
		return nil, usecase.NewExchangeError(usecase.ErrParse, "parse order", err)
	}
	return &models.Order{
		ID:            strconv.FormatInt(l.OrderID, 10),
		ClientOrderID: l.ClientOrderID,
		ProductID:     bi.productBySymbol[l.Symbol],
		Side:          orderSide(l.Side),
		OrderType:     orderType(l.Type),
		Status:        orderStatus(l.Status),
		Price:         price,
		Size:          size,
		FilledSize:    filled,
		PostOnly:      l.Type == binance.OrderTypeLimitMaker,
		Time:          time.Unix(0, l.Time*int64(time.Millisecond)),
	}, nil
}

func (bi *Binance) wrapErr(op string, err error) error {
	if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == codeOrderNotExist {
		return usecase.NewExchangeError(usecase.ErrNotFound, op, err)
	}
	return usecase.NewExchangeError(usecase.ErrTransient, op, err)
}

func sideType(side models.OrderSide) binance.SideType {
	if side == models.SideBuy {
		return binance.SideTypeBuy
	}
	return binance.SideTypeSell
}

func orderSide(side binance.SideType) models.OrderSide {
	if side == binance.SideTypeBuy {
		return models.SideBuy
	}
	return models.SideSell
}

func orderType(t binance.OrderType) models.OrderType {
	if t == binance.OrderTypeMarket {
		return models.TypeMarket
	}
	return models.TypeLimit
}

func orderStatus(s binance.OrderStatusType) models.OrderStatus {
	switch s {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		return models.StatusOpen
	case binance.OrderStatusTypeFilled, binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return models.StatusDone
	case binance.OrderStatusTypeRejected:
		return models.StatusRejected
	default:
		return models.StatusPending
	}
}
