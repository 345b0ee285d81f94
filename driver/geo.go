package driver

import (
	"strconv"

	"github.com/iverson3/xvalkey/lib/utils"
)

// 地理位置命令

// GeoMember 是一个带坐标的成员
type GeoMember struct {
	Name      string
	Longitude float64
	Latitude  float64
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GeoAdd 添加带坐标的成员，返回新增的个数
func (c *Conn) GeoAdd(key string, members ...GeoMember) (int64, error) {
	args := make([]string, 0, len(members)*3+1)
	args = append(args, key)
	for _, m := range members {
		args = append(args, formatCoord(m.Longitude), formatCoord(m.Latitude), m.Name)
	}
	return c.intResult([]string{key}, utils.ToCmdLine2("GEOADD", args...))
}

// GeoDist 返回两个成员间的距离，unit为m/km/mi/ft
// 任一成员不存在时返回Nil
func (c *Conn) GeoDist(key, member1, member2, unit string) (float64, error) {
	return c.floatResult([]string{key}, utils.ToCmdLine("GEODIST", key, member1, member2, unit))
}

// GeoPos 返回成员的坐标，结果与成员一一对应，缺失的成员对应nil
func (c *Conn) GeoPos(key string, members ...string) ([]*GeoPos, error) {
	args := append([]string{key}, members...)
	v, err := c.dispatch([]string{key}, shapeGeoPos, utils.ToCmdLine2("GEOPOS", args...))
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]*GeoPos), nil
}

// GeoHash 返回成员坐标的geohash编码
func (c *Conn) GeoHash(key string, members ...string) ([]string, error) {
	args := append([]string{key}, members...)
	return c.stringListResult([]string{key}, utils.ToCmdLine2("GEOHASH", args...))
}
