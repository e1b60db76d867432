package inspection

import (
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

func (c *Core) stats() (*DashboardStats, error) {
	stats := DashboardStats{
		Devices: DeviceStats{DeviceTypes: []string{}},
	}

	if err := c.Db.Conn.Model(&models.User{}).Count(&stats.Users.TotalUsers).Error; err != nil {
		return nil, WrapInternal("count users", err)
	}
	if err := c.Db.Conn.Model(&models.User{}).Where("role = ?", models.RoleCustomer).Count(&stats.Users.CustomerCount).Error; err != nil {
		return nil, WrapInternal("count customers", err)
	}
	if err := c.Db.Conn.Model(&models.User{}).Where("role = ?", models.RoleInspectionManager).Count(&stats.Users.InspectorCount).Error; err != nil {
		return nil, WrapInternal("count inspectors", err)
	}

	if err := c.Db.Conn.Model(&models.Device{}).Count(&stats.Devices.TotalDevices).Error; err != nil {
		return nil, WrapInternal("count devices", err)
	}
	if err := c.Db.Conn.Model(&models.Device{}).Distinct("type").Pluck("type", &stats.Devices.DeviceTypes).Error; err != nil {
		return nil, WrapInternal("collect device types", err)
	}

	if err := c.Db.Conn.Model(&models.Inspection{}).Count(&stats.Inspections.TotalInspections).Error; err != nil {
		return nil, WrapInternal("count inspections", err)
	}
	if err := c.Db.Conn.Model(&models.Inspection{}).
		Where("status = ?", models.InspectionStatusCompleted).
		Count(&stats.Inspections.CompletedInspections).Error; err != nil {
		return nil, WrapInternal("count completed inspections", err)
	}
	stats.Inspections.PendingInspections = stats.Inspections.TotalInspections - stats.Inspections.CompletedInspections

	return &stats, nil
}

func (c *Core) recentCompleted() ([]RecentInspection, error) {
	recent := []RecentInspection{}
	err := c.Db.Conn.
		Table("inspections").
		Select("inspections.id, inspections.result, inspections.completed_date, devices.serial_number AS device_serial_number, users.name AS inspector_name").
		Joins("JOIN devices ON devices.id = inspections.device_id").
		Joins("JOIN users ON users.id = inspections.inspector_id").
		Where("inspections.status = ?", models.InspectionStatusCompleted).
		Order("inspections.completed_date desc").
		Limit(10).
		Scan(&recent).Error
	if err != nil {
		return nil, WrapInternal("load recent completed inspections", err)
	}
	return recent, nil
}

func (c *Core) customerAnalytics(customerID uint) (*CustomerAnalytics, error) {
	var analytics CustomerAnalytics

	if err := c.Db.Conn.Model(&models.Device{}).
		Where("customer_id = ?", customerID).
		Count(&analytics.TotalDevices).Error; err != nil {
		return nil, WrapInternal("count customer devices", err)
	}

	if err := c.Db.Conn.Model(&models.Inspection{}).
		Joins("JOIN devices ON devices.id = inspections.device_id").
		Where("devices.customer_id = ?", customerID).
		Count(&analytics.TotalInspections).Error; err != nil {
		return nil, WrapInternal("count customer inspections", err)
	}
	if err := c.Db.Conn.Model(&models.Inspection{}).
		Joins("JOIN devices ON devices.id = inspections.device_id").
		Where("devices.customer_id = ? AND inspections.status = ?", customerID, models.InspectionStatusCompleted).
		Count(&analytics.CompletedInspections).Error; err != nil {
		return nil, WrapInternal("count customer completed inspections", err)
	}
	analytics.PendingInspections = analytics.TotalInspections - analytics.CompletedInspections

	return &analytics, nil
}

type IDashboardImpl struct {
	core *Core
}

func (id *IDashboardImpl) Stats() (*DashboardStats, error) {
	return id.core.stats()
}

func (id *IDashboardImpl) RecentCompleted() ([]RecentInspection, error) {
	return id.core.recentCompleted()
}

func (id *IDashboardImpl) CustomerAnalytics(customerID uint) (*CustomerAnalytics, error) {
	return id.core.customerAnalytics(customerID)
}

func (c *Core) GetIDashboard() IDashboard {
	return &IDashboardImpl{core: c}
}
