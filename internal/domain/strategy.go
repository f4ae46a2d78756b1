package domain

// Strategy names one of the four federation shapes. The cross-store values
// encode execution order: the first store's result feeds the second store's
// query through the join key.
type Strategy string

const (
	StrategyMySQLOnly      Strategy = "mysql_only"
	StrategyInfluxOnly     Strategy = "influxdb_only"
	StrategyMySQLThenFlux  Strategy = "mysql_then_influxdb"
	StrategyFluxThenMySQL  Strategy = "influxdb_then_mysql"
	// StrategyUnknown is the zero value; never returned on success.
	StrategyUnknown Strategy = ""
)

// Valid reports whether the strategy is one of the four declared shapes.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMySQLOnly, StrategyInfluxOnly, StrategyMySQLThenFlux, StrategyFluxThenMySQL:
		return true
	}
	return false
}

// CrossStore reports whether the strategy spans both stores.
func (s Strategy) CrossStore() bool {
	return s == StrategyMySQLThenFlux || s == StrategyFluxThenMySQL
}

// Stores returns the stores the strategy touches, in execution order.
func (s Strategy) Stores() []StoreID {
	switch s {
	case StrategyMySQLOnly:
		return []StoreID{StoreMySQL}
	case StrategyInfluxOnly:
		return []StoreID{StoreInflux}
	case StrategyMySQLThenFlux:
		return []StoreID{StoreMySQL, StoreInflux}
	case StrategyFluxThenMySQL:
		return []StoreID{StoreInflux, StoreMySQL}
	}
	return nil
}
