package hashslot

import "strings"

// SlotCount 集群的哈希槽总数，协议固定为16384
const SlotCount = 16384

// crc16 实现 CRC-16/XMODEM (多项式0x1021, 初始值0x0000)
// 与redis/valkey官方的slot散列算法保持一致
func crc16(data []byte) uint16 {
	crc := uint16(0)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// hashTag 从键中提取哈希标签
// 如果键中含有被{}包裹的非空子串，只对该子串散列，以便相关的键落在同一个slot上
func hashTag(key string) string {
	beg := strings.IndexByte(key, '{')
	if beg == -1 {
		return key
	}
	end := strings.IndexByte(key[beg+1:], '}')
	if end <= 0 {
		// 没有'}'或者{}为空，对整个键散列
		return key
	}
	return key[beg+1 : beg+1+end]
}

// Slot 计算给定键所属的哈希槽，结果在[0, 16383]之间
// 纯函数，相同的键永远得到相同的slot
func Slot(key string) uint32 {
	return uint32(crc16([]byte(hashTag(key)))) % SlotCount
}

// SameSlot 判断一组键是否全部落在同一个slot上
// 空键集返回true
func SameSlot(keys ...string) bool {
	if len(keys) <= 1 {
		return true
	}
	first := Slot(keys[0])
	for _, key := range keys[1:] {
		if Slot(key) != first {
			return false
		}
	}
	return true
}
