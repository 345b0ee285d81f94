package driver

import (
	"strconv"

	"github.com/iverson3/xvalkey/interface/redis"
	"github.com/iverson3/xvalkey/redis/protocol"
)

// shape 是命令约定的结果形状
// 转换是(结果种类, 形状)的纯函数，在命令注册时静态确定，不做I/O
type shape int

const (
	// shapeOK +OK风格的状态 -> bool
	shapeOK shape = iota
	// shapeStatus 状态行 -> string
	shapeStatus
	// shapeInt 整数 -> int64
	shapeInt
	// shapeBool 0/1整数 -> bool
	shapeBool
	// shapeBytes 单个二进制值 -> []byte，空值返回Nil
	shapeBytes
	// shapeString 单个字符串值 -> string，空值返回Nil
	shapeString
	// shapeFloat 以字符串携带的浮点值 -> float64
	shapeFloat
	// shapeList 字符串数组 -> [][]byte
	shapeList
	// shapeStringList 字符串数组 -> []string
	shapeStringList
	// shapeMap 扁平的键值对数组 -> map[string]string
	shapeMap
	// shapeZSlice member,score交替的数组 -> []Z
	shapeZSlice
	// shapeXEntries 流条目数组 -> []XEntry
	shapeXEntries
	// shapeGeoPos 坐标对数组 -> []*GeoPos，缺失的成员为nil
	shapeGeoPos
	// shapeAny 按结果种类做通用转换，供透传接口使用
	shapeAny
)

// Z 是有序集合的一个成员及其分值
type Z struct {
	Member string
	Score  float64
}

// XEntry 是流中的一个条目
type XEntry struct {
	ID     string
	Fields map[string]string
}

// GeoPos 是一个经纬度坐标
type GeoPos struct {
	Longitude float64
	Latitude  float64
}

// kindOf 给出结果种类的可读名字，用于错误消息
func kindOf(reply redis.Reply) string {
	switch reply.(type) {
	case *protocol.OkReply, *protocol.PongReply, *protocol.StatusReply:
		return "status"
	case *protocol.IntReply:
		return "integer"
	case *protocol.BulkReply:
		return "bulk"
	case *protocol.NullBulkReply:
		return "null bulk"
	case *protocol.MultiBulkReply, *protocol.EmptyMultiBulkReply:
		return "array"
	case *protocol.NullMultiBulkReply:
		return "null array"
	case *protocol.MultiRawReply:
		return "nested array"
	default:
		return "unknown"
	}
}

func mismatch(expected string, reply redis.Reply) error {
	return &ProtocolMismatchError{Expected: expected, Got: kindOf(reply)}
}

// convert 把节点结果按约定的形状转换成规范值
// 节点侧的错误结果转换为CommandError；形状不符转换为ProtocolMismatchError
func convert(reply redis.Reply, s shape) (interface{}, error) {
	if reply == nil {
		return nil, mismatch("reply", reply)
	}
	if errReply, ok := reply.(protocol.ErrorReply); ok {
		return nil, &CommandError{Message: errReply.Error()}
	}

	switch s {
	case shapeOK:
		return convertOK(reply)
	case shapeStatus:
		return convertStatus(reply)
	case shapeInt:
		return convertInt(reply)
	case shapeBool:
		return convertBool(reply)
	case shapeBytes:
		return convertBytes(reply)
	case shapeString:
		b, err := convertBytes(reply)
		if err != nil {
			return "", err
		}
		return string(b.([]byte)), nil
	case shapeFloat:
		return convertFloat(reply)
	case shapeList:
		return convertList(reply)
	case shapeStringList:
		return convertStringList(reply)
	case shapeMap:
		return convertMap(reply)
	case shapeZSlice:
		return convertZSlice(reply)
	case shapeXEntries:
		return convertXEntries(reply)
	case shapeGeoPos:
		return convertGeoPos(reply)
	case shapeAny:
		return convertAny(reply)
	}
	return nil, mismatch("known shape", reply)
}

func convertOK(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.OkReply:
		return true, nil
	case *protocol.StatusReply:
		return r.Status == "OK", nil
	case *protocol.NullBulkReply:
		// 带条件的写入未生效，如SET NX未命中
		return false, nil
	default:
		return false, mismatch("status", reply)
	}
}

func convertStatus(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.OkReply:
		return "OK", nil
	case *protocol.PongReply:
		return "PONG", nil
	case *protocol.StatusReply:
		return r.Status, nil
	case *protocol.BulkReply:
		return string(r.Arg), nil
	default:
		return "", mismatch("status", reply)
	}
}

func convertInt(reply redis.Reply) (interface{}, error) {
	switch reply.(type) {
	case *protocol.IntReply:
		return reply.(*protocol.IntReply).Code, nil
	case *protocol.NullBulkReply:
		return int64(0), Nil
	default:
		return int64(0), mismatch("integer", reply)
	}
}

func convertBool(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.IntReply:
		return r.Code != 0, nil
	case *protocol.OkReply:
		return true, nil
	case *protocol.StatusReply:
		return r.Status == "OK", nil
	case *protocol.NullBulkReply:
		return false, nil
	default:
		return false, mismatch("integer", reply)
	}
}

func convertBytes(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.BulkReply:
		if r.Arg == nil {
			return []byte(nil), Nil
		}
		return r.Arg, nil
	case *protocol.NullBulkReply:
		return []byte(nil), Nil
	default:
		return []byte(nil), mismatch("bulk", reply)
	}
}

func convertFloat(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.BulkReply:
		if r.Arg == nil {
			return float64(0), Nil
		}
		f, err := strconv.ParseFloat(string(r.Arg), 64)
		if err != nil {
			return float64(0), mismatch("float", reply)
		}
		return f, nil
	case *protocol.IntReply:
		return float64(r.Code), nil
	case *protocol.NullBulkReply:
		return float64(0), Nil
	default:
		return float64(0), mismatch("float", reply)
	}
}

// flatArgs 取扁平数组的元素，容忍数组内的空值洞
func flatArgs(reply redis.Reply) ([][]byte, error) {
	switch r := reply.(type) {
	case *protocol.MultiBulkReply:
		return r.Args, nil
	case *protocol.EmptyMultiBulkReply:
		return [][]byte{}, nil
	case *protocol.NullMultiBulkReply:
		return nil, Nil
	case *protocol.MultiRawReply:
		args := make([][]byte, 0, len(r.Replies))
		for _, elem := range r.Replies {
			switch e := elem.(type) {
			case *protocol.BulkReply:
				args = append(args, e.Arg)
			case *protocol.NullBulkReply:
				args = append(args, nil)
			case *protocol.IntReply:
				args = append(args, []byte(strconv.FormatInt(e.Code, 10)))
			default:
				return nil, mismatch("array of bulk", reply)
			}
		}
		return args, nil
	default:
		return nil, mismatch("array", reply)
	}
}

func convertList(reply redis.Reply) (interface{}, error) {
	args, err := flatArgs(reply)
	if err != nil {
		return [][]byte(nil), err
	}
	return args, nil
}

func convertStringList(reply redis.Reply) (interface{}, error) {
	args, err := flatArgs(reply)
	if err != nil {
		return []string(nil), err
	}
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = string(arg)
	}
	return out, nil
}

func convertMap(reply redis.Reply) (interface{}, error) {
	args, err := flatArgs(reply)
	if err != nil {
		return map[string]string(nil), err
	}
	if len(args)%2 != 0 {
		return map[string]string(nil), mismatch("array of pairs", reply)
	}
	out := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		out[string(args[i])] = string(args[i+1])
	}
	return out, nil
}

func convertZSlice(reply redis.Reply) (interface{}, error) {
	args, err := flatArgs(reply)
	if err != nil {
		return []Z(nil), err
	}
	if len(args)%2 != 0 {
		return []Z(nil), mismatch("array of member/score pairs", reply)
	}
	out := make([]Z, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		score, err := strconv.ParseFloat(string(args[i+1]), 64)
		if err != nil {
			return []Z(nil), mismatch("float score", reply)
		}
		out = append(out, Z{Member: string(args[i]), Score: score})
	}
	return out, nil
}

func convertXEntries(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.EmptyMultiBulkReply:
		return []XEntry{}, nil
	case *protocol.MultiRawReply:
		out := make([]XEntry, 0, len(r.Replies))
		for _, elem := range r.Replies {
			entry, ok := elem.(*protocol.MultiRawReply)
			if !ok || len(entry.Replies) != 2 {
				return []XEntry(nil), mismatch("stream entry", reply)
			}
			id, err := convertBytes(entry.Replies[0])
			if err != nil {
				return []XEntry(nil), mismatch("stream entry id", reply)
			}
			fields, err := convertMap(entry.Replies[1])
			if err != nil {
				return []XEntry(nil), err
			}
			out = append(out, XEntry{
				ID:     string(id.([]byte)),
				Fields: fields.(map[string]string),
			})
		}
		return out, nil
	default:
		return []XEntry(nil), mismatch("array of stream entries", reply)
	}
}

func convertGeoPos(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.EmptyMultiBulkReply:
		return []*GeoPos{}, nil
	case *protocol.MultiRawReply:
		out := make([]*GeoPos, 0, len(r.Replies))
		for _, elem := range r.Replies {
			coords, err := flatArgs(elem)
			if err != nil {
				if err == Nil {
					// 成员不存在
					out = append(out, nil)
					continue
				}
				return []*GeoPos(nil), err
			}
			if len(coords) != 2 {
				return []*GeoPos(nil), mismatch("coordinate pair", reply)
			}
			lon, err1 := strconv.ParseFloat(string(coords[0]), 64)
			lat, err2 := strconv.ParseFloat(string(coords[1]), 64)
			if err1 != nil || err2 != nil {
				return []*GeoPos(nil), mismatch("coordinate pair", reply)
			}
			out = append(out, &GeoPos{Longitude: lon, Latitude: lat})
		}
		return out, nil
	default:
		return []*GeoPos(nil), mismatch("array of coordinates", reply)
	}
}

// convertAny 只按结果种类做通用转换，透传接口（CLI等）使用
func convertAny(reply redis.Reply) (interface{}, error) {
	switch r := reply.(type) {
	case *protocol.OkReply:
		return "OK", nil
	case *protocol.PongReply:
		return "PONG", nil
	case *protocol.StatusReply:
		return r.Status, nil
	case *protocol.IntReply:
		return r.Code, nil
	case *protocol.BulkReply:
		if r.Arg == nil {
			return nil, nil
		}
		return r.Arg, nil
	case *protocol.NullBulkReply:
		return nil, nil
	case *protocol.EmptyMultiBulkReply:
		return []interface{}{}, nil
	case *protocol.NullMultiBulkReply:
		return nil, nil
	case *protocol.MultiBulkReply:
		out := make([]interface{}, len(r.Args))
		for i, arg := range r.Args {
			if arg == nil {
				out[i] = nil
			} else {
				out[i] = arg
			}
		}
		return out, nil
	case *protocol.MultiRawReply:
		out := make([]interface{}, len(r.Replies))
		for i, elem := range r.Replies {
			v, err := convertAny(elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, mismatch("any", reply)
	}
}
