package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOprLog{},
	&SysScheduler{},
	// POS
	&Product{},
	&Order{},
	&Closure{},
}
